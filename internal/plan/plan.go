// Package plan holds the in-memory model of a scanned ion treatment plan:
// fields made of energy layers made of spots, plus the dose and meterset
// bookkeeping that has to stay consistent with the spot weights.
package plan

import (
	"fmt"

	"github.com/mrsinham/dicomfix/internal/beammodel"
)

// Vendor specific particles·(dE/dx) per MU, used when no beam model is given.
const (
	VendorFactorVarian = 17247566.1
	VendorFactorIBA    = 5.1821e8
)

// Metadata holds plan-level attributes that the edit pipeline may rewrite.
type Metadata struct {
	PatientName    string
	PatientID      string
	PlanLabel      string
	PlanDate       string
	PlanTime       string
	ApprovalStatus string
	PlanIntent     string
	ReviewerName   string
	OperatorsName  string
	Manufacturer   string
	SOPInstanceUID string

	// Tags are additional registered plan attributes keyed by DICOM keyword.
	Tags map[string]string
}

// Geometry is the patient and machine setup stored on the first control
// point of a field.
type Geometry struct {
	GantryAngle          float64
	PatientSupportAngle  float64
	TableTopVertical     float64 // mm
	TableTopLongitudinal float64 // mm
	TableTopLateral      float64 // mm
	SnoutPosition        float64 // mm
}

// RangeShifter describes a single installed range shifter device.
type RangeShifter struct {
	Number                   int
	ID                       string
	Type                     string
	Setting                  string
	IsocenterDistance        float64 // mm
	WaterEquivalentThickness float64 // mm
}

// Aggregates are reductions over spots with non-zero weight.
type Aggregates struct {
	XMin, XMax   float64
	YMin, YMax   float64
	CumMU        float64
	CumParticles float64
}

// Spot is one scanned delivery position.
type Spot struct {
	X, Y      float64 // mm at isocenter
	Weight    float64 // meterset weight
	MU        float64
	Particles float64

	// Optional beam model derived quantities.
	SizeX, SizeY float64 // FWHM mm
	DivX, DivY   float64
	CovX, CovY   float64
}

// Layer is one stored energy layer record. Fields coming from RT Ion Plan
// files alternate data layers and zero weight echo layers.
type Layer struct {
	Spots []Spot

	NominalEnergy  float64 // MeV
	MeasuredEnergy float64 // MeV
	EnergySpread   float64 // MeV, sigma

	// CumulativeMetersetWeight is the weight delivered before this layer.
	CumulativeMetersetWeight float64
	// DoseReferenceCoefficient is the weight delivered through this layer
	// divided by the field total.
	DoseReferenceCoefficient float64

	Paintings     int
	SpotSizeX     float64 // FWHM mm
	SpotSizeY     float64 // FWHM mm
	MUToParticles float64

	Aggregates

	// Origin is the control point index in the source beam.
	Origin int
}

// IsEmpty reports whether every spot weight is exactly zero.
func (l *Layer) IsEmpty() bool {
	for _, s := range l.Spots {
		if s.Weight != 0 {
			return false
		}
	}
	return true
}

// TotalWeight returns the sum of spot weights.
func (l *Layer) TotalWeight() float64 {
	var sum float64
	for _, s := range l.Spots {
		sum += s.Weight
	}
	return sum
}

// Field is one treatment beam.
type Field struct {
	Number           int
	Name             string
	TreatmentMachine string
	Layers           []*Layer

	FinalCumulativeMetersetWeight float64
	BeamDose                      float64 // Gy
	BeamMeterset                  float64 // MU

	Geometry     Geometry
	RangeShifter *RangeShifter
	Scaling      float64

	Aggregates

	// Origin is the index of the source beam item. Duplicated fields share it.
	Origin int
}

// MetersetPerWeight returns the MU delivered per unit of meterset weight.
func (f *Field) MetersetPerWeight() (float64, error) {
	if f.FinalCumulativeMetersetWeight == 0 {
		return 0, fmt.Errorf("field %d: %w", f.Number, ErrZeroCumulativeWeight)
	}
	return f.BeamMeterset / f.FinalCumulativeMetersetWeight, nil
}

// PhysicalLayerCount counts layers that carry at least one non-zero weight.
func (f *Field) PhysicalLayerCount() int {
	n := 0
	for _, l := range f.Layers {
		if !l.IsEmpty() {
			n++
		}
	}
	return n
}

// TotalWeight sums every spot weight in the field.
func (f *Field) TotalWeight() float64 {
	var sum float64
	for _, l := range f.Layers {
		sum += l.TotalWeight()
	}
	return sum
}

// RecomputeCumulativeWeights rebuilds the cumulative weights, dose reference
// coefficients and final weight from the spot weights. The beam meterset is
// left as is.
func (f *Field) RecomputeCumulativeWeights() {
	total := f.TotalWeight()
	var cum float64
	for _, l := range f.Layers {
		l.CumulativeMetersetWeight = cum
		cum += l.TotalWeight()
		if total != 0 {
			l.DoseReferenceCoefficient = cum / total
		} else {
			l.DoseReferenceCoefficient = 0
		}
	}
	f.FinalCumulativeMetersetWeight = total
}

// Plan is the root aggregate.
type Plan struct {
	Metadata Metadata
	Fields   []*Field

	// BeamModel is optional and attached after loading.
	BeamModel *beammodel.Model

	Scaling      float64
	VendorFactor float64

	Aggregates
}

// TotalSpots counts spots on physical layers.
func (p *Plan) TotalSpots() int {
	n := 0
	for _, f := range p.Fields {
		for _, l := range f.Layers {
			if !l.IsEmpty() {
				n += len(l.Spots)
			}
		}
	}
	return n
}

// Clone returns a deep copy. The beam model is shared.
func (p *Plan) Clone() *Plan {
	c := *p
	if p.Metadata.Tags != nil {
		c.Metadata.Tags = make(map[string]string, len(p.Metadata.Tags))
		for k, v := range p.Metadata.Tags {
			c.Metadata.Tags[k] = v
		}
	}
	c.Fields = make([]*Field, len(p.Fields))
	for i, f := range p.Fields {
		c.Fields[i] = f.Clone()
	}
	return &c
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	c := *f
	if f.RangeShifter != nil {
		rs := *f.RangeShifter
		c.RangeShifter = &rs
	}
	c.Layers = make([]*Layer, len(f.Layers))
	for i, l := range f.Layers {
		lc := *l
		lc.Spots = append([]Spot(nil), l.Spots...)
		c.Layers[i] = &lc
	}
	return &c
}
