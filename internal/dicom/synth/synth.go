// Package synth writes synthetic RT Ion Plan files. They are used as test
// fixtures, by the end to end suite and by the `dicomfix synth` command.
package synth

import (
	"fmt"
	"hash/fnv"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomfix/internal/dicom/rtplan"
	"github.com/mrsinham/dicomfix/internal/plan"
	"github.com/mrsinham/dicomfix/internal/util"
)

// Options controls the generated plan.
type Options struct {
	OutputPath    string
	Seed          int64 // 0 derives a seed from OutputPath
	Fields        int
	Layers        int     // physical energy layers per field
	SpotsPerLayer int
	BeamDose      float64 // Gy per field
	BeamMeterset  float64 // MU per field
	Machine       string
	RangeShifter  bool

	// LowWeightShare is the fraction of spots given a weight small enough
	// to fall below 1 MU.
	LowWeightShare float64

	Quiet bool // Suppress progress output
}

// DefaultOptions returns a small two field plan.
func DefaultOptions() Options {
	return Options{
		Fields:         2,
		Layers:         5,
		SpotsPerLayer:  25,
		BeamDose:       1.0,
		BeamMeterset:   250,
		Machine:        "TR1",
		LowWeightShare: 0.05,
	}
}

func (o Options) validate() error {
	switch {
	case o.Fields < 1:
		return fmt.Errorf("fields must be at least 1, got %d", o.Fields)
	case o.Layers < 1:
		return fmt.Errorf("layers must be at least 1, got %d", o.Layers)
	case o.SpotsPerLayer < 1:
		return fmt.Errorf("spots per layer must be at least 1, got %d", o.SpotsPerLayer)
	case o.BeamMeterset <= 0:
		return fmt.Errorf("beam meterset must be positive, got %v", o.BeamMeterset)
	case o.BeamDose < 0:
		return fmt.Errorf("beam dose must not be negative, got %v", o.BeamDose)
	case o.LowWeightShare < 0 || o.LowWeightShare > 1:
		return fmt.Errorf("low weight share must be in [0, 1], got %v", o.LowWeightShare)
	}
	return nil
}

func (o Options) seed() int64 {
	if o.Seed != 0 {
		return o.Seed
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(o.OutputPath)) // hash.Write never returns an error
	return int64(h.Sum64())
}

// mustNewElement creates a DICOM element and panics on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// Generate writes a plan to opts.OutputPath and returns the model it holds.
func Generate(opts Options) (*plan.Plan, error) {
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	doc, p, err := Build(opts)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(opts.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := doc.Write(opts.OutputPath); err != nil {
		return nil, err
	}
	if !opts.Quiet {
		fmt.Printf("Patient: %s (ID: %s)\n", p.Metadata.PatientName, p.Metadata.PatientID)
		fmt.Printf("Fields: %d, energy layers per field: %d, spots: %s\n",
			len(p.Fields), opts.Layers, util.FormatCount(p.TotalSpots()))
		size := "?"
		if info, err := os.Stat(opts.OutputPath); err == nil {
			size = util.FormatBytes(info.Size())
		}
		fmt.Printf("\n✓ RT Ion Plan written to: %s (%s)\n", opts.OutputPath, size)
	}
	return p, nil
}

// Build creates the plan in memory. The returned document is already
// encoded from the returned model.
func Build(opts Options) (*rtplan.Document, *plan.Plan, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	seed := opts.seed()
	rng := randv2.New(randv2.NewPCG(uint64(seed), uint64(seed)))
	if !opts.Quiet {
		fmt.Printf("Using seed: %d\n", seed)
	}

	sex := "F"
	if rng.IntN(2) == 0 {
		sex = "M"
	}
	p := &plan.Plan{
		Metadata: plan.Metadata{
			PatientName:    util.GeneratePatientName(sex, rng),
			PatientID:      fmt.Sprintf("PT%06d", rng.IntN(1000000)),
			PlanLabel:      fmt.Sprintf("SYNTH%02d", rng.IntN(100)),
			PlanDate:       time.Date(2024, 1, 1+rng.IntN(28), 0, 0, 0, 0, time.UTC).Format("20060102"),
			PlanTime:       fmt.Sprintf("%02d%02d00", 8+rng.IntN(10), rng.IntN(60)),
			ApprovalStatus: "UNAPPROVED",
			PlanIntent:     util.GeneratePlanIntent(rng).String(),
			OperatorsName:  util.GenerateStaffName(rng),
			Manufacturer:   "dicomfix",
			SOPInstanceUID: util.NewUID(),
			Tags:           map[string]string{},
		},
		Scaling:      1,
		VendorFactor: plan.VendorFactorVarian,
	}
	for i := 0; i < opts.Fields; i++ {
		p.Fields = append(p.Fields, buildField(i, opts, rng))
	}

	doc := &rtplan.Document{Dataset: dicom.Dataset{Elements: skeleton(p, sex, opts)}}
	if err := doc.Encode(p); err != nil {
		return nil, nil, fmt.Errorf("encode synthetic plan: %w", err)
	}
	return doc, p, nil
}

// buildField lays out a square spot grid per energy layer, stored as data
// layer followed by its zero weight echo layer.
func buildField(i int, opts Options, rng *randv2.Rand) *plan.Field {
	f := &plan.Field{
		Number:           i + 1,
		Name:             fmt.Sprintf("F%d", i+1),
		TreatmentMachine: opts.Machine,
		BeamDose:         opts.BeamDose,
		Scaling:          1,
		Origin:           i,
		Geometry: plan.Geometry{
			GantryAngle:   float64((i * 360 / opts.Fields) % 360),
			SnoutPosition: 300,
		},
	}
	if opts.RangeShifter {
		f.RangeShifter = &plan.RangeShifter{
			Number:                   1,
			ID:                       "RS_5CM",
			Type:                     "BINARY",
			Setting:                  "IN",
			IsocenterDistance:        98.0,
			WaterEquivalentThickness: 22.8,
		}
	}

	side := 1
	for side*side < opts.SpotsPerLayer {
		side++
	}
	const spacing = 5.0 // mm
	for j := 0; j < opts.Layers; j++ {
		energy := 160 - 5*float64(j)
		origin := min(2*j, 1)
		data := &plan.Layer{NominalEnergy: energy, MeasuredEnergy: energy, Paintings: 1, SpotSizeX: 8, SpotSizeY: 8, Origin: origin}
		echo := &plan.Layer{NominalEnergy: energy, MeasuredEnergy: energy, Paintings: 1, SpotSizeX: 8, SpotSizeY: 8, Origin: 1}
		for k := 0; k < opts.SpotsPerLayer; k++ {
			x := (float64(k%side) - float64(side-1)/2) * spacing
			y := (float64(k/side) - float64(side-1)/2) * spacing
			w := 0.5 + rng.Float64()
			if rng.Float64() < opts.LowWeightShare {
				w = 0.001 + 0.01*rng.Float64()
			}
			data.Spots = append(data.Spots, plan.Spot{X: x, Y: y, Weight: w})
			echo.Spots = append(echo.Spots, plan.Spot{X: x, Y: y})
		}
		f.Layers = append(f.Layers, data, echo)
	}
	f.RecomputeCumulativeWeights()
	f.BeamMeterset = opts.BeamMeterset
	return f
}

// skeleton builds the dataset attributes the model does not carry, plus one
// template beam per field with two control point templates.
func skeleton(p *plan.Plan, sex string, opts Options) []*dicom.Element {
	m := p.Metadata
	studyUID := util.NewUID()
	elements := []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{rtplan.RTIonPlanStorage}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{m.SOPInstanceUID}),
		mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(tag.SOPClassUID, []string{rtplan.RTIonPlanStorage}),
		mustNewElement(tag.SOPInstanceUID, []string{m.SOPInstanceUID}),
		mustNewElement(tag.StudyDate, []string{m.PlanDate}),
		mustNewElement(tag.Modality, []string{"RTPLAN"}),
		mustNewElement(tag.Manufacturer, []string{m.Manufacturer}),
		mustNewElement(tag.OperatorsName, []string{m.OperatorsName}),
		mustNewElement(tag.PatientName, []string{m.PatientName}),
		mustNewElement(tag.PatientID, []string{m.PatientID}),
		mustNewElement(tag.PatientSex, []string{sex}),
		mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
		mustNewElement(tag.SeriesInstanceUID, []string{util.NewUID()}),
		mustNewElement(tag.RTPlanLabel, []string{m.PlanLabel}),
		mustNewElement(tag.RTPlanDate, []string{m.PlanDate}),
		mustNewElement(tag.RTPlanTime, []string{m.PlanTime}),
		mustNewElement(tag.PlanIntent, []string{m.PlanIntent}),
		mustNewElement(tag.RTPlanGeometry, []string{"PATIENT"}),
		mustNewElement(tag.ApprovalStatus, []string{m.ApprovalStatus}),
	}

	var beams [][]*dicom.Element
	for _, f := range p.Fields {
		cp0 := sorted(
			mustNewElement(tag.ControlPointIndex, []string{"0"}),
			mustNewElement(tag.NominalBeamEnergy, []string{"0"}),
			mustNewElement(tag.GantryAngle, []string{"0"}),
			mustNewElement(tag.GantryRotationDirection, []string{"NONE"}),
			mustNewElement(tag.PatientSupportAngle, []string{"0"}),
			mustNewElement(tag.TableTopVerticalPosition, []string{"0"}),
			mustNewElement(tag.TableTopLongitudinalPosition, []string{"0"}),
			mustNewElement(tag.TableTopLateralPosition, []string{"0"}),
			mustNewElement(tag.IsocenterPosition, []string{"0", "0", "0"}),
			mustNewElement(tag.CumulativeMetersetWeight, []string{"0"}),
			mustNewElement(tag.ReferencedDoseReferenceSequence, [][]*dicom.Element{{
				mustNewElement(tag.CumulativeDoseReferenceCoefficient, []string{"0"}),
				mustNewElement(tag.ReferencedDoseReferenceNumber, []string{"1"}),
			}}),
			mustNewElement(tag.ScanSpotTuneID, []string{"Spot1"}),
			mustNewElement(tag.ScanningSpotSize, []float64{8, 8}),
			mustNewElement(tag.NumberOfPaintings, []string{"1"}),
			mustNewElement(tag.SnoutPosition, []float64{300}),
			mustNewElement(tag.MetersetRate, []float64{100}),
		)
		cpN := sorted(
			mustNewElement(tag.ControlPointIndex, []string{"1"}),
			mustNewElement(tag.NominalBeamEnergy, []string{"0"}),
			mustNewElement(tag.CumulativeMetersetWeight, []string{"0"}),
			mustNewElement(tag.ReferencedDoseReferenceSequence, [][]*dicom.Element{{
				mustNewElement(tag.CumulativeDoseReferenceCoefficient, []string{"0"}),
				mustNewElement(tag.ReferencedDoseReferenceNumber, []string{"1"}),
			}}),
			mustNewElement(tag.ScanSpotTuneID, []string{"Spot1"}),
			mustNewElement(tag.ScanningSpotSize, []float64{8, 8}),
			mustNewElement(tag.NumberOfPaintings, []string{"1"}),
		)
		beams = append(beams, sorted(
			mustNewElement(tag.Manufacturer, []string{m.Manufacturer}),
			mustNewElement(tag.TreatmentMachineName, []string{opts.Machine}),
			mustNewElement(tag.PrimaryDosimeterUnit, []string{"MU"}),
			mustNewElement(tag.BeamNumber, []string{fmt.Sprintf("%d", f.Number)}),
			mustNewElement(tag.BeamName, []string{f.Name}),
			mustNewElement(tag.BeamType, []string{"STATIC"}),
			mustNewElement(tag.RadiationType, []string{"PROTON"}),
			mustNewElement(tag.TreatmentDeliveryType, []string{"TREATMENT"}),
			mustNewElement(tag.NumberOfWedges, []string{"0"}),
			mustNewElement(tag.NumberOfCompensators, []string{"0"}),
			mustNewElement(tag.NumberOfBoli, []string{"0"}),
			mustNewElement(tag.NumberOfBlocks, []string{"0"}),
			mustNewElement(tag.FinalCumulativeMetersetWeight, []string{"0"}),
			mustNewElement(tag.NumberOfControlPoints, []string{"2"}),
			mustNewElement(tag.ScanMode, []string{"MODULATED"}),
			mustNewElement(tag.NumberOfRangeShifters, []string{"0"}),
			mustNewElement(tag.IonControlPointSequence, [][]*dicom.Element{cp0, cpN}),
		))
	}

	dose := []*dicom.Element{
		mustNewElement(tag.DoseReferenceNumber, []string{"1"}),
		mustNewElement(tag.DoseReferenceUID, []string{util.NewUID()}),
		mustNewElement(tag.DoseReferenceStructureType, []string{"SITE"}),
		mustNewElement(tag.DoseReferenceDescription, []string{"Target"}),
		mustNewElement(tag.DoseReferenceType, []string{"TARGET"}),
	}
	group := []*dicom.Element{
		mustNewElement(tag.FractionGroupNumber, []string{"1"}),
		mustNewElement(tag.NumberOfFractionsPlanned, []string{"1"}),
		mustNewElement(tag.NumberOfBeams, []string{fmt.Sprintf("%d", len(p.Fields))}),
		mustNewElement(tag.NumberOfBrachyApplicationSetups, []string{"0"}),
	}

	elements = append(elements,
		mustNewElement(tag.DoseReferenceSequence, [][]*dicom.Element{dose}),
		mustNewElement(tag.FractionGroupSequence, [][]*dicom.Element{group}),
		mustNewElement(tag.IonBeamSequence, beams),
		mustNewElement(tag.PatientSetupSequence, [][]*dicom.Element{{
			mustNewElement(tag.PatientPosition, []string{"HFS"}),
			mustNewElement(tag.PatientSetupNumber, []string{"1"}),
		}}),
	)
	return sorted(elements...)
}

// sorted orders elements by tag, as the writer emits them in slice order.
func sorted(elems ...*dicom.Element) []*dicom.Element {
	sort.Slice(elems, func(i, j int) bool {
		if elems[i].Tag.Group != elems[j].Tag.Group {
			return elems[i].Tag.Group < elems[j].Tag.Group
		}
		return elems[i].Tag.Element < elems[j].Tag.Element
	})
	return elems
}
