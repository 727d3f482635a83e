// Package rescale rewrites spot weights and the dependent meterset
// bookkeeping of a plan under a rescale mode, enforcing the minimum
// deliverable MU per spot.
package rescale

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrsinham/dicomfix/internal/logging"
	"github.com/mrsinham/dicomfix/internal/plan"
)

// ErrZeroBeamDose is returned when a target dose is requested for a field
// without a beam dose to scale from.
var ErrZeroBeamDose = errors.New("beam dose is zero")

// Totals are the field values reported before and after a rescale.
type Totals struct {
	CumulativeWeight float64
	BeamMeterset     float64 // MU
	BeamDose         float64 // Gy
}

// FieldReport summarises the rescale of one field.
type FieldReport struct {
	Number      int
	Name        string
	ScaleFactor float64
	Before      Totals
	After       Totals
}

// Report is returned by Engine.Apply.
type Report struct {
	Mode      Mode
	Fields    []FieldReport
	Admission plan.AdmissionReport
}

// Engine applies rescale modes to plans.
type Engine struct {
	Policy plan.AdmissionPolicy
	Log    logging.Logger
}

// NewEngine returns an engine using policy. A nil logger drops records.
func NewEngine(policy plan.AdmissionPolicy, log logging.Logger) *Engine {
	return &Engine{Policy: policy, Log: logging.OrNoop(log)}
}

// Apply rescales p in place. Every precondition is checked before the
// first write, so on error the plan is left untouched.
func (e *Engine) Apply(ctx context.Context, p *plan.Plan, m Mode) (*Report, error) {
	log := logging.OrNoop(e.Log)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := e.Policy.Validate(); err != nil {
		return nil, err
	}
	if err := checkPlan(p, m); err != nil {
		return nil, err
	}

	if m.Kind == KindMinimize {
		k, err := MinimizeFactor(p, e.Policy)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "minimized plan", logging.Float("factor", k), logging.Float("min_mu", e.Policy.MinMU))
		m = Mode{Kind: KindMinimize, Value: k}
	}

	rep := &Report{Mode: m}
	for _, f := range p.Fields {
		k := m.Value
		if m.Kind == KindTargetDose {
			// Each field is brought to the target on its own.
			k = m.Value / f.BeamDose
		}
		log.Info(ctx, "rescaling field", logging.Int("field", f.Number), logging.Float("factor", k))

		fr, adm, err := e.applyField(ctx, log, f, k, m.LayerFactors)
		if err != nil {
			return nil, err
		}
		rep.Fields = append(rep.Fields, fr)
		rep.Admission.Merge(adm)
	}
	return rep, nil
}

func checkPlan(p *plan.Plan, m Mode) error {
	if len(p.Fields) == 0 {
		return fmt.Errorf("plan has no fields")
	}
	for _, f := range p.Fields {
		if f.FinalCumulativeMetersetWeight == 0 {
			return fmt.Errorf("field %d: %w", f.Number, plan.ErrZeroCumulativeWeight)
		}
		if m.Kind == KindTargetDose && f.BeamDose == 0 {
			return fmt.Errorf("field %d: %w", f.Number, ErrZeroBeamDose)
		}
		if len(m.LayerFactors) > 0 {
			if n := f.PhysicalLayerCount(); n != len(m.LayerFactors) {
				return fmt.Errorf("field %d has %d energy layers but %d layer factors were given: %w",
					f.Number, n, len(m.LayerFactors), plan.ErrLayerCountMismatch)
			}
		}
	}
	return nil
}

func (e *Engine) applyField(ctx context.Context, log logging.Logger, f *plan.Field, k float64, layerFactors []float64) (FieldReport, plan.AdmissionReport, error) {
	var adm plan.AdmissionReport
	before := Totals{
		CumulativeWeight: f.FinalCumulativeMetersetWeight,
		BeamMeterset:     f.BeamMeterset,
		BeamDose:         f.BeamDose,
	}

	newDose := f.BeamDose * k
	newMeterset := f.BeamMeterset * k
	// Admission uses the original total weight as denominator.
	mpw := newMeterset / f.FinalCumulativeMetersetWeight

	// Pass 1: prefix-before cumulative weights and admitted spot weights.
	sums := make([]float64, len(f.Layers))
	var cum float64
	physical := 0
	for li, l := range f.Layers {
		l.CumulativeMetersetWeight = cum

		factor := 1.0
		if !l.IsEmpty() {
			if len(layerFactors) > 0 {
				factor = layerFactors[physical]
			}
			physical++
		}

		var sum float64
		for si := range l.Spots {
			s := &l.Spots[si]
			w := s.Weight * factor
			if mu := w * mpw; e.Policy.Admit(w, mu) == plan.Reject {
				adm.Record(plan.SpotRef{
					Field: f.Number, Origin: f.Origin, Layer: li, Spot: si,
					Energy: l.NominalEnergy, X: s.X, Y: s.Y, MU: mu,
				})
				log.Warn(ctx, "discarding spot below minimum MU",
					logging.Int("field", f.Number),
					logging.Int("layer", li),
					logging.Float("energy_mev", l.NominalEnergy),
					logging.Float("x_cm", s.X*0.1),
					logging.Float("y_cm", s.Y*0.1),
					logging.Float("mu", mu))
				w = 0
			}
			s.Weight = w
			sum += w
		}
		sums[li] = sum
		cum += sum
	}
	if len(layerFactors) > 0 && physical != len(layerFactors) {
		return FieldReport{}, adm, fmt.Errorf("field %d: rewrote %d energy layers for %d layer factors: %w",
			f.Number, physical, len(layerFactors), plan.ErrLayerCountMismatch)
	}

	// Pass 2: prefix-through dose reference coefficients.
	var through float64
	for li, l := range f.Layers {
		through += sums[li]
		if cum != 0 {
			l.DoseReferenceCoefficient = through / cum
		} else {
			l.DoseReferenceCoefficient = 0
		}
	}

	f.FinalCumulativeMetersetWeight = cum
	f.BeamMeterset = newMeterset
	f.BeamDose = newDose

	return FieldReport{
		Number:      f.Number,
		Name:        f.Name,
		ScaleFactor: k,
		Before:      before,
		After: Totals{
			CumulativeWeight: cum,
			BeamMeterset:     newMeterset,
			BeamDose:         newDose,
		},
	}, adm, nil
}
