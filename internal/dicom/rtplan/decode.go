package rtplan

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomfix/internal/plan"
)

type beamRecord struct {
	meterset float64
	dose     float64
}

// Decode maps the dataset to a plan. Single spot control points come back
// from the parser as one element lists like any other.
func (d *Document) Decode() (*plan.Plan, error) {
	top := d.Dataset.Elements
	p := &plan.Plan{
		Metadata: plan.Metadata{
			PatientName:    getString(top, tag.PatientName),
			PatientID:      getString(top, tag.PatientID),
			PlanLabel:      getString(top, tag.RTPlanLabel),
			PlanDate:       getString(top, tag.RTPlanDate),
			PlanTime:       getString(top, tag.RTPlanTime),
			ApprovalStatus: getString(top, tag.ApprovalStatus),
			PlanIntent:     getString(top, tag.PlanIntent),
			ReviewerName:   getString(top, tag.ReviewerName),
			OperatorsName:  getString(top, tag.OperatorsName),
			Manufacturer:   getString(top, tag.Manufacturer),
			SOPInstanceUID: getString(top, tag.SOPInstanceUID),
			Tags:           map[string]string{},
		},
		Scaling:      1,
		VendorFactor: plan.VendorFactorVarian,
	}

	records, err := referencedBeams(top)
	if err != nil {
		return nil, err
	}

	beams := getItems(top, tag.IonBeamSequence)
	if len(beams) == 0 {
		return nil, fmt.Errorf("%w: empty ion beam sequence", ErrMalformedPlan)
	}
	for i, b := range beams {
		f, err := decodeBeam(b, i)
		if err != nil {
			return nil, err
		}
		rec, ok := records[f.Number]
		if !ok {
			return nil, fmt.Errorf("%w: beam %d has no referenced beam record", ErrMalformedPlan, f.Number)
		}
		f.BeamMeterset = rec.meterset
		f.BeamDose = rec.dose
		p.Fields = append(p.Fields, f)
	}
	return p, nil
}

func referencedBeams(top []*dicom.Element) (map[int]beamRecord, error) {
	groups := getItems(top, tag.FractionGroupSequence)
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no fraction group sequence", ErrMalformedPlan)
	}
	out := map[int]beamRecord{}
	for _, ref := range getItems(groups[0], tag.ReferencedBeamSequence) {
		num, ok, err := getFloat(ref, tag.ReferencedBeamNumber)
		if err != nil || !ok {
			return nil, fmt.Errorf("%w: referenced beam without number", ErrMalformedPlan)
		}
		meterset, _, err := getFloat(ref, tag.BeamMeterset)
		if err != nil {
			return nil, fmt.Errorf("%w: beam %d: %v", ErrMalformedPlan, int(num), err)
		}
		dose, _, err := getFloat(ref, tag.BeamDose)
		if err != nil {
			return nil, fmt.Errorf("%w: beam %d: %v", ErrMalformedPlan, int(num), err)
		}
		out[int(num)] = beamRecord{meterset: meterset, dose: dose}
	}
	return out, nil
}

func decodeBeam(b []*dicom.Element, index int) (*plan.Field, error) {
	num, ok, err := getFloat(b, tag.BeamNumber)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: ion beam %d has no beam number", ErrMalformedPlan, index+1)
	}
	f := &plan.Field{
		Number:           int(num),
		Name:             getString(b, tag.BeamName),
		TreatmentMachine: getString(b, tag.TreatmentMachineName),
		Scaling:          1,
		Origin:           index,
	}
	if f.FinalCumulativeMetersetWeight, _, err = getFloat(b, tag.FinalCumulativeMetersetWeight); err != nil {
		return nil, fmt.Errorf("%w: beam %d: %v", ErrMalformedPlan, f.Number, err)
	}

	cps := getItems(b, tag.IonControlPointSequence)
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: beam %d has no control points", ErrMalformedPlan, f.Number)
	}

	// Energy, spot size and paintings carry over to later control points
	// that leave them out.
	var prev plan.Layer
	prev.Paintings = 1
	for j, cp := range cps {
		l, err := decodeControlPoint(cp, j, prev)
		if err != nil {
			return nil, fmt.Errorf("beam %d: %w", f.Number, err)
		}
		f.Layers = append(f.Layers, l)
		prev = *l
	}

	f.Geometry, err = decodeGeometry(cps[0])
	if err != nil {
		return nil, fmt.Errorf("%w: beam %d: %v", ErrMalformedPlan, f.Number, err)
	}

	if rs := getItems(b, tag.RangeShifterSequence); len(rs) > 0 {
		f.RangeShifter = decodeRangeShifter(rs[0], cps[0])
	}
	return f, nil
}

func decodeControlPoint(cp []*dicom.Element, index int, prev plan.Layer) (*plan.Layer, error) {
	l := &plan.Layer{
		NominalEnergy: prev.NominalEnergy,
		Paintings:     prev.Paintings,
		SpotSizeX:     prev.SpotSizeX,
		SpotSizeY:     prev.SpotSizeY,
		Origin:        index,
	}
	malformed := func(format string, args ...any) error {
		return fmt.Errorf("%w: control point %d: %s", ErrMalformedPlan, index, fmt.Sprintf(format, args...))
	}

	if e, ok, err := getFloat(cp, tag.NominalBeamEnergy); err != nil {
		return nil, malformed("%v", err)
	} else if ok {
		l.NominalEnergy = e
	}
	l.MeasuredEnergy = l.NominalEnergy

	if n, ok, err := getFloat(cp, tag.NumberOfPaintings); err != nil {
		return nil, malformed("%v", err)
	} else if ok {
		l.Paintings = int(n)
	}
	if size, _, err := getFloats(cp, tag.ScanningSpotSize); err != nil {
		return nil, malformed("%v", err)
	} else if len(size) == 2 {
		l.SpotSizeX, l.SpotSizeY = size[0], size[1]
	}

	var err error
	if l.CumulativeMetersetWeight, _, err = getFloat(cp, tag.CumulativeMetersetWeight); err != nil {
		return nil, malformed("%v", err)
	}

	weights, _, err := getFloats(cp, tag.ScanSpotMetersetWeights)
	if err != nil {
		return nil, malformed("%v", err)
	}
	positions, _, err := getFloats(cp, tag.ScanSpotPositionMap)
	if err != nil {
		return nil, malformed("%v", err)
	}
	if n, ok, err := getFloat(cp, tag.NumberOfScanSpotPositions); err != nil {
		return nil, malformed("%v", err)
	} else if ok && int(n) != len(weights) {
		return nil, malformed("%d spot positions declared but %d weights", int(n), len(weights))
	}
	if len(positions) != 2*len(weights) {
		return nil, malformed("%d position values for %d weights", len(positions), len(weights))
	}

	l.Spots = make([]plan.Spot, len(weights))
	for i, w := range weights {
		l.Spots[i] = plan.Spot{X: positions[2*i], Y: positions[2*i+1], Weight: w}
	}

	if refs := getItems(cp, tag.ReferencedDoseReferenceSequence); len(refs) > 0 {
		if l.DoseReferenceCoefficient, _, err = getFloat(refs[0], tag.CumulativeDoseReferenceCoefficient); err != nil {
			return nil, malformed("%v", err)
		}
	}
	return l, nil
}

func decodeGeometry(cp []*dicom.Element) (plan.Geometry, error) {
	var g plan.Geometry
	fields := []struct {
		t   tag.Tag
		dst *float64
	}{
		{tag.GantryAngle, &g.GantryAngle},
		{tag.PatientSupportAngle, &g.PatientSupportAngle},
		{tag.TableTopVerticalPosition, &g.TableTopVertical},
		{tag.TableTopLongitudinalPosition, &g.TableTopLongitudinal},
		{tag.TableTopLateralPosition, &g.TableTopLateral},
		{tag.SnoutPosition, &g.SnoutPosition},
	}
	for _, f := range fields {
		v, _, err := getFloat(cp, f.t)
		if err != nil {
			return g, err
		}
		*f.dst = v
	}
	return g, nil
}

func decodeRangeShifter(item, cp []*dicom.Element) *plan.RangeShifter {
	num, _, _ := getFloat(item, tag.RangeShifterNumber)
	rs := &plan.RangeShifter{
		Number: int(num),
		ID:     getString(item, tag.RangeShifterID),
		Type:   getString(item, tag.RangeShifterType),
	}
	if settings := getItems(cp, tag.RangeShifterSettingsSequence); len(settings) > 0 {
		s := settings[0]
		rs.Setting = getString(s, tag.RangeShifterSetting)
		rs.IsocenterDistance, _, _ = getFloat(s, tag.IsocenterToRangeShifterDistance)
		rs.WaterEquivalentThickness, _, _ = getFloat(s, tag.RangeShifterWaterEquivalentThickness)
	}
	return rs
}
