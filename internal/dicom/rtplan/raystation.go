package rtplan

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomfix/internal/transform"
	"github.com/mrsinham/dicomfix/internal/util"
)

// VarianManufacturer is the manufacturer string Varian proton systems expect.
const VarianManufacturer = "Varian Medical System Particle Therapy"

// Delta couch shift attributes written by RayStation that the treatment
// console refuses.
var couchShiftTags = []tag.Tag{
	{Group: 0x300A, Element: 0x01D2},
	{Group: 0x300A, Element: 0x01D4},
	{Group: 0x300A, Element: 0x01D6},
}

// FixRayStation rewrites a RayStation export so Varian proton consoles
// accept it. It works on the dataset directly and returns a description of
// every change made. Decode afterwards to see the fixed plan.
func FixRayStation(d *Document) ([]string, error) {
	var notes []string
	note := func(format string, args ...any) {
		notes = append(notes, fmt.Sprintf(format, args...))
	}

	top := setText(d.Dataset.Elements, tag.Manufacturer, VarianManufacturer)

	if setups := getItems(top, tag.PatientSetupSequence); len(setups) > 0 {
		for i, ps := range setups {
			for _, t := range couchShiftTags {
				if has(ps, t) {
					note("removed %v from patient setup %d", t, i+1)
				}
			}
			ps = remove(ps, couchShiftTags...)
			setups[i] = setText(ps, tag.SetupTechnique, "ISOCENTRIC")
		}
		top = setSequence(top, tag.PatientSetupSequence, setups)
	}

	if !has(top, tag.DoseReferenceSequence) {
		ref := items(
			numbers(tag.DoseReferenceNumber, 1),
			text(tag.DoseReferenceUID, util.NewUID()),
			text(tag.DoseReferenceStructureType, "SITE"),
			text(tag.DoseReferenceDescription, "Target"),
		)
		top = setSequence(top, tag.DoseReferenceSequence, [][]*dicom.Element{ref})
		note("added dose reference 1 (Target)")
	}

	if !has(top, tag.IonToleranceTableSequence) {
		tt := items(
			numbers(tag.ToleranceTableNumber, 1),
			text(tag.ToleranceTableLabel, "T1"),
			numbers(tag.GantryAngleTolerance, 0.5),
			numbers(tag.SnoutPositionTolerance, 5.0),
			numbers(tag.PatientSupportAngleTolerance, 3.0),
			numbers(tag.TableTopPitchAngleTolerance, 3.0),
			numbers(tag.TableTopRollAngleTolerance, 3.0),
			numbers(tag.TableTopVerticalPositionTolerance, 20.0),
			numbers(tag.TableTopLongitudinalPositionTolerance, 20.0),
			numbers(tag.TableTopLateralPositionTolerance, 20.0),
		)
		top = setSequence(top, tag.IonToleranceTableSequence, [][]*dicom.Element{tt})
		note("added tolerance table T1")
	}

	beams := getItems(top, tag.IonBeamSequence)
	for i, b := range beams {
		fixed, err := fixBeam(b, note)
		if err != nil {
			return nil, fmt.Errorf("ion beam %d: %w", i+1, err)
		}
		beams[i] = fixed
	}
	top = setSequence(top, tag.IonBeamSequence, beams)

	d.Dataset.Elements = top
	return notes, nil
}

func fixBeam(b []*dicom.Element, note func(string, ...any)) ([]*dicom.Element, error) {
	num, _, _ := getFloat(b, tag.BeamNumber)
	final, _, err := getFloat(b, tag.FinalCumulativeMetersetWeight)
	if err != nil {
		return nil, err
	}
	if final == 0 {
		return nil, fmt.Errorf("%w: final cumulative meterset weight is zero", ErrMalformedPlan)
	}

	b = setText(b, tag.Manufacturer, VarianManufacturer)
	b = setText(b, tag.PatientSupportAccessoryCode, "AC123")
	if snouts := getItems(b, tag.SnoutSequence); len(snouts) > 0 {
		for i := range snouts {
			snouts[i] = setText(snouts[i], tag.SnoutID, "S1")
		}
		b = setSequence(b, tag.SnoutSequence, snouts)
	}
	if has(b, tag.RangeShifterSequence) {
		b = remove(b, tag.RangeShifterSequence)
		b = setNumber(b, tag.NumberOfRangeShifters, 0)
		note("beam %d: removed range shifter", int(num))
	}
	b = setNumber(b, tag.ReferencedToleranceTableNumber, 1)

	cps := getItems(b, tag.IonControlPointSequence)
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: no control points", ErrMalformedPlan)
	}

	cp0 := cps[0]
	zeroIfBlank := []tag.Tag{
		tag.TableTopVerticalPosition,
		tag.TableTopLongitudinalPosition,
		tag.TableTopLateralPosition,
		tag.TableTopPitchAngle,
		tag.TableTopRollAngle,
		tag.PatientSupportAngle,
		tag.GantryAngle,
	}
	for _, t := range zeroIfBlank {
		if isBlank(cp0, t) {
			cp0 = setNumber(cp0, t, 0)
		}
	}
	switch {
	case !has(cp0, tag.SnoutPosition):
		cp0 = setNumber(cp0, tag.SnoutPosition, transform.TR4SnoutPosition)
	case isBlank(cp0, tag.SnoutPosition):
		cp0 = setNumber(cp0, tag.SnoutPosition, 0)
	}
	if isBlank(cp0, tag.MetersetRate) {
		cp0 = setNumber(cp0, tag.MetersetRate, 100)
	}
	cps[0] = cp0

	var cum float64
	for i, cp := range cps {
		weights, _, err := getFloats(cp, tag.ScanSpotMetersetWeights)
		if err != nil {
			return nil, fmt.Errorf("control point %d: %w", i, err)
		}
		for _, w := range weights {
			cum += w
		}
		refs := getItems(cp, tag.ReferencedDoseReferenceSequence)
		if len(refs) == 0 {
			refs = [][]*dicom.Element{nil}
		}
		refs[0] = setNumber(refs[0], tag.CumulativeDoseReferenceCoefficient, cum/final)
		refs[0] = setNumber(refs[0], tag.ReferencedDoseReferenceNumber, 1)
		cps[i] = setSequence(cp, tag.ReferencedDoseReferenceSequence, refs)
	}
	return setSequence(b, tag.IonControlPointSequence, stripRangeShifterSettings(cps)), nil
}

func stripRangeShifterSettings(cps [][]*dicom.Element) [][]*dicom.Element {
	for i, cp := range cps {
		cps[i] = remove(cp, tag.RangeShifterSettingsSequence)
	}
	return cps
}
