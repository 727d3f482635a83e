package rtplan

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomfix/internal/plan"
	"github.com/mrsinham/dicomfix/internal/util"
)

// Encode writes p back into the dataset. Every field is rebuilt from the
// source beam it originates from, so duplicated fields share a template.
// NumberOfBeams is always written from len(p.Fields).
func (d *Document) Encode(p *plan.Plan) error {
	top := d.Dataset.Elements
	srcBeams := getItems(top, tag.IonBeamSequence)
	groups := getItems(top, tag.FractionGroupSequence)
	if len(groups) == 0 {
		return fmt.Errorf("%w: no fraction group sequence", ErrMalformedPlan)
	}
	srcRefs := map[int][]*dicom.Element{}
	for _, ref := range getItems(groups[0], tag.ReferencedBeamSequence) {
		if n, ok, _ := getFloat(ref, tag.ReferencedBeamNumber); ok {
			srcRefs[int(n)] = ref
		}
	}

	beams := make([][]*dicom.Element, 0, len(p.Fields))
	refs := make([][]*dicom.Element, 0, len(p.Fields))
	for _, f := range p.Fields {
		if f.Origin < 0 || f.Origin >= len(srcBeams) {
			return fmt.Errorf("field %d: source beam %d not in document", f.Number, f.Origin)
		}
		src := srcBeams[f.Origin]
		srcNum, _, _ := getFloat(src, tag.BeamNumber)

		beam, err := encodeBeam(src, f, p.Metadata.Tags)
		if err != nil {
			return fmt.Errorf("field %d: %w", f.Number, err)
		}
		beams = append(beams, beam)
		refs = append(refs, encodeReferencedBeam(srcRefs[int(srcNum)], f))
	}

	groups[0] = setSequence(groups[0], tag.ReferencedBeamSequence, refs)
	groups[0] = setNumber(groups[0], tag.NumberOfBeams, float64(len(p.Fields)))
	top = setSequence(top, tag.FractionGroupSequence, groups)
	top = setSequence(top, tag.IonBeamSequence, beams)
	top = encodeMetadata(top, p.Metadata)

	d.Dataset.Elements = top
	return nil
}

func encodeMetadata(top []*dicom.Element, m plan.Metadata) []*dicom.Element {
	values := []struct {
		t tag.Tag
		v string
	}{
		{tag.PatientName, m.PatientName},
		{tag.PatientID, m.PatientID},
		{tag.RTPlanLabel, m.PlanLabel},
		{tag.RTPlanDate, m.PlanDate},
		{tag.RTPlanTime, m.PlanTime},
		{tag.ApprovalStatus, m.ApprovalStatus},
		{tag.PlanIntent, m.PlanIntent},
		{tag.ReviewerName, m.ReviewerName},
		{tag.OperatorsName, m.OperatorsName},
		{tag.Manufacturer, m.Manufacturer},
	}
	for _, kv := range values {
		if kv.v != "" || has(top, kv.t) {
			top = setText(top, kv.t, kv.v)
		}
	}
	for name, v := range m.Tags {
		info, err := util.GetTagByName(name)
		if err != nil || info.Scope == util.ScopeBeam {
			continue
		}
		top = setText(top, info.Tag, v)
	}
	return top
}

func encodeBeam(src []*dicom.Element, f *plan.Field, tags map[string]string) ([]*dicom.Element, error) {
	b := setNumber(src, tag.BeamNumber, float64(f.Number))
	b = setText(b, tag.BeamName, f.Name)
	if f.TreatmentMachine != "" || has(b, tag.TreatmentMachineName) {
		b = setText(b, tag.TreatmentMachineName, f.TreatmentMachine)
	}
	b = setNumber(b, tag.FinalCumulativeMetersetWeight, f.FinalCumulativeMetersetWeight)
	for name, v := range tags {
		if info, err := util.GetTagByName(name); err == nil && info.Scope == util.ScopeBeam {
			b = setText(b, info.Tag, v)
		}
	}

	if rs := f.RangeShifter; rs != nil {
		item := items(
			numbers(tag.RangeShifterNumber, float64(rs.Number)),
			text(tag.RangeShifterID, rs.ID),
			text(tag.RangeShifterType, rs.Type),
		)
		b = setSequence(b, tag.RangeShifterSequence, [][]*dicom.Element{item})
		b = setNumber(b, tag.NumberOfRangeShifters, 1)
	} else {
		b = remove(b, tag.RangeShifterSequence)
		if has(b, tag.NumberOfRangeShifters) {
			b = setNumber(b, tag.NumberOfRangeShifters, 0)
		}
	}

	srcCPs := getItems(src, tag.IonControlPointSequence)
	if len(srcCPs) == 0 {
		return nil, fmt.Errorf("%w: source beam has no control points", ErrMalformedPlan)
	}
	cps := make([][]*dicom.Element, 0, len(f.Layers))
	for j, l := range f.Layers {
		tmpl := srcCPs[min(max(l.Origin, 0), len(srcCPs)-1)]
		cps = append(cps, encodeControlPoint(tmpl, j, l, f))
	}
	b = setNumber(b, tag.NumberOfControlPoints, float64(len(cps)))
	b = setSequence(b, tag.IonControlPointSequence, cps)
	return b, nil
}

func encodeControlPoint(tmpl []*dicom.Element, index int, l *plan.Layer, f *plan.Field) []*dicom.Element {
	cp := setNumber(tmpl, tag.ControlPointIndex, float64(index))
	cp = setNumber(cp, tag.NominalBeamEnergy, l.NominalEnergy)
	cp = setNumber(cp, tag.CumulativeMetersetWeight, l.CumulativeMetersetWeight)

	weights := make([]float64, len(l.Spots))
	positions := make([]float64, 0, 2*len(l.Spots))
	for i, s := range l.Spots {
		weights[i] = s.Weight
		positions = append(positions, s.X, s.Y)
	}
	cp = setNumber(cp, tag.NumberOfScanSpotPositions, float64(len(l.Spots)))
	cp = setNumber(cp, tag.ScanSpotPositionMap, positions...)
	cp = setNumber(cp, tag.ScanSpotMetersetWeights, weights...)
	if l.Paintings > 1 || has(cp, tag.NumberOfPaintings) {
		cp = setNumber(cp, tag.NumberOfPaintings, float64(max(l.Paintings, 1)))
	}

	if refs := getItems(cp, tag.ReferencedDoseReferenceSequence); len(refs) > 0 {
		refs[0] = setNumber(refs[0], tag.CumulativeDoseReferenceCoefficient, l.DoseReferenceCoefficient)
		cp = setSequence(cp, tag.ReferencedDoseReferenceSequence, refs)
	}

	if index == 0 {
		g := f.Geometry
		cp = setNumber(cp, tag.GantryAngle, g.GantryAngle)
		cp = setNumber(cp, tag.PatientSupportAngle, g.PatientSupportAngle)
		cp = setNumber(cp, tag.TableTopVerticalPosition, g.TableTopVertical)
		cp = setNumber(cp, tag.TableTopLongitudinalPosition, g.TableTopLongitudinal)
		cp = setNumber(cp, tag.TableTopLateralPosition, g.TableTopLateral)
		cp = setNumber(cp, tag.SnoutPosition, g.SnoutPosition)
	}

	if rs := f.RangeShifter; rs != nil {
		item := items(
			text(tag.RangeShifterSetting, rs.Setting),
			numbers(tag.IsocenterToRangeShifterDistance, rs.IsocenterDistance),
			numbers(tag.RangeShifterWaterEquivalentThickness, rs.WaterEquivalentThickness),
			numbers(tag.ReferencedRangeShifterNumber, float64(rs.Number)),
		)
		cp = setSequence(cp, tag.RangeShifterSettingsSequence, [][]*dicom.Element{item})
	} else {
		cp = remove(cp, tag.RangeShifterSettingsSequence)
	}
	return cp
}

func encodeReferencedBeam(tmpl []*dicom.Element, f *plan.Field) []*dicom.Element {
	ref := setNumber(tmpl, tag.ReferencedBeamNumber, float64(f.Number))
	ref = setNumber(ref, tag.BeamMeterset, f.BeamMeterset)
	if f.BeamDose != 0 || has(ref, tag.BeamDose) {
		ref = setNumber(ref, tag.BeamDose, f.BeamDose)
	}
	return ref
}

// items builds a sequence item with elements in ascending tag order.
func items(elems ...*dicom.Element) []*dicom.Element {
	var out []*dicom.Element
	for _, e := range elems {
		out = set(out, e)
	}
	return out
}
