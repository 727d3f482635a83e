package rtplan

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Element list helpers. Lists are treated as copy on write: setters return
// a new slice and never modify an element in place, so templates taken from
// the source dataset can be shared between duplicated beams.

func find(elems []*dicom.Element, t tag.Tag) *dicom.Element {
	for _, e := range elems {
		if e.Tag == t {
			return e
		}
	}
	return nil
}

func has(elems []*dicom.Element, t tag.Tag) bool { return find(elems, t) != nil }

func tagLess(a, b tag.Tag) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Element < b.Element
}

// set replaces the element with the same tag, or inserts e keeping the list
// in ascending tag order.
func set(elems []*dicom.Element, e *dicom.Element) []*dicom.Element {
	out := make([]*dicom.Element, 0, len(elems)+1)
	inserted := false
	for _, x := range elems {
		switch {
		case x.Tag == e.Tag:
			if !inserted {
				out = append(out, e)
				inserted = true
			}
			continue
		case !inserted && tagLess(e.Tag, x.Tag):
			out = append(out, e)
			inserted = true
		}
		out = append(out, x)
	}
	if !inserted {
		out = append(out, e)
	}
	return out
}

func remove(elems []*dicom.Element, tags ...tag.Tag) []*dicom.Element {
	out := make([]*dicom.Element, 0, len(elems))
	for _, e := range elems {
		drop := false
		for _, t := range tags {
			if e.Tag == t {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, e)
		}
	}
	return out
}

// mustNewElement creates an element and panics on error. Only used with
// values whose type matches the tag VR.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

func vrOf(t tag.Tag) string {
	info, err := tag.Find(t)
	if err != nil || len(info.VRs) == 0 {
		return "DS"
	}
	return info.VRs[0]
}

// formatDS renders v as a decimal string of at most 16 characters.
func formatDS(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	for prec := 15; len(s) > 16 && prec > 0; prec-- {
		s = strconv.FormatFloat(v, 'g', prec, 64)
	}
	return s
}

// numbers builds an element holding vals in the representation the tag's
// VR calls for.
func numbers(t tag.Tag, vals ...float64) *dicom.Element {
	switch vrOf(t) {
	case "FL", "FD":
		return mustNewElement(t, append([]float64(nil), vals...))
	case "US", "UL", "SS", "SL":
		ints := make([]int, len(vals))
		for i, v := range vals {
			ints[i] = int(math.Round(v))
		}
		return mustNewElement(t, ints)
	case "IS":
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = strconv.Itoa(int(math.Round(v)))
		}
		return mustNewElement(t, strs)
	default:
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = formatDS(v)
		}
		return mustNewElement(t, strs)
	}
}

func text(t tag.Tag, s string) *dicom.Element {
	return mustNewElement(t, []string{s})
}

func sequence(t tag.Tag, items [][]*dicom.Element) *dicom.Element {
	return mustNewElement(t, items)
}

func setNumber(elems []*dicom.Element, t tag.Tag, vals ...float64) []*dicom.Element {
	return set(elems, numbers(t, vals...))
}

func setText(elems []*dicom.Element, t tag.Tag, s string) []*dicom.Element {
	return set(elems, text(t, s))
}

func setSequence(elems []*dicom.Element, t tag.Tag, items [][]*dicom.Element) []*dicom.Element {
	return set(elems, sequence(t, items))
}

// getFloats reads a numeric element whatever its stored representation.
func getFloats(elems []*dicom.Element, t tag.Tag) ([]float64, bool, error) {
	e := find(elems, t)
	if e == nil || e.Value == nil {
		return nil, false, nil
	}
	switch v := e.Value.GetValue().(type) {
	case []float64:
		return v, true, nil
	case []int:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true, nil
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, true, fmt.Errorf("%v: invalid number %q", t, s)
			}
			out = append(out, f)
		}
		return out, true, nil
	default:
		return nil, true, fmt.Errorf("%v: unexpected value type %T", t, v)
	}
}

// getFloat returns the first value of a numeric element. ok is false when
// the element is missing or empty.
func getFloat(elems []*dicom.Element, t tag.Tag) (float64, bool, error) {
	vals, _, err := getFloats(elems, t)
	if err != nil || len(vals) == 0 {
		return 0, false, err
	}
	return vals[0], true, nil
}

func getString(elems []*dicom.Element, t tag.Tag) string {
	e := find(elems, t)
	if e == nil || e.Value == nil {
		return ""
	}
	if v, ok := e.Value.GetValue().([]string); ok && len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func getItems(elems []*dicom.Element, t tag.Tag) [][]*dicom.Element {
	e := find(elems, t)
	if e == nil || e.Value == nil {
		return nil
	}
	seq, ok := e.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil
	}
	out := make([][]*dicom.Element, 0, len(seq))
	for _, item := range seq {
		if els, ok := item.GetValue().([]*dicom.Element); ok {
			out = append(out, els)
		}
	}
	return out
}

// isBlank reports whether the element is missing or carries no value.
func isBlank(elems []*dicom.Element, t tag.Tag) bool {
	vals, _, err := getFloats(elems, t)
	return err != nil || len(vals) == 0
}
