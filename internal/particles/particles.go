// Package particles converts spot monitor units into proton counts, either
// through a measured beam model or through the stopping power of air.
package particles

import (
	"errors"
	"fmt"
	"math"

	"github.com/mrsinham/dicomfix/internal/beammodel"
	"github.com/mrsinham/dicomfix/internal/plan"
)

// ErrEnergyOutOfRange is returned for energies outside the validity of the
// stopping power fit.
var ErrEnergyOutOfRange = errors.New("energy outside stopping power fit range")

// Validity of the ICRU 49 fit, MeV.
const (
	MinEnergy = 1.0
	MaxEnergy = 500.0
)

// StoppingPowerAir returns the mass stopping power of protons in air in
// MeV cm2/g, following the ICRU 49 polynomial fit in ln(E).
func StoppingPowerAir(energy float64) (float64, error) {
	if math.IsNaN(energy) || energy < MinEnergy || energy > MaxEnergy {
		return 0, fmt.Errorf("%w: %.2f MeV not in [%g, %g]", ErrEnergyOutOfRange, energy, MinEnergy, MaxEnergy)
	}
	x := math.Log(energy)
	y := 5.4041 - 0.66877*x - 0.034441*x*x - 0.0010707*x*x*x + 0.00082584*x*x*x*x
	return math.Exp(y), nil
}

// Convert fills particle counts for every spot of p from the spot MU. With a
// beam model the layer energies, spread and spot sizes are taken from the
// model as well. Without one, the plan vendor factor divided by the stopping
// power of air at the measured energy is used. Aggregates are recomputed on
// success.
func Convert(p *plan.Plan, bm *beammodel.Model) error {
	for _, f := range p.Fields {
		for li, l := range f.Layers {
			var err error
			if bm != nil {
				err = fromModel(f, l, bm)
			} else {
				err = fromStoppingPower(p, f, l)
			}
			if err != nil {
				return fmt.Errorf("field %d layer %d: %w", f.Number, li+1, err)
			}
		}
	}
	RecomputeAggregates(p)
	return nil
}

func fromModel(f *plan.Field, l *plan.Layer, bm *beammodel.Model) error {
	pt, err := bm.Lookup(l.NominalEnergy)
	if err != nil {
		return err
	}
	l.MUToParticles = pt.ParticlesPerMU
	l.MeasuredEnergy = pt.MeasuredEnergy
	l.EnergySpread = pt.EnergySpread
	l.SpotSizeX = beammodel.FWHM(pt.SigmaX)
	l.SpotSizeY = beammodel.FWHM(pt.SigmaY)

	for i := range l.Spots {
		s := &l.Spots[i]
		s.Particles = s.MU * l.MUToParticles * f.Scaling
		s.SizeX, s.SizeY = l.SpotSizeX, l.SpotSizeY
		if bm.HasDivergence() {
			s.DivX, s.DivY = pt.DivX, pt.DivY
			s.CovX, s.CovY = pt.CovX, pt.CovY
		}
	}
	return nil
}

func fromStoppingPower(p *plan.Plan, f *plan.Field, l *plan.Layer) error {
	// MU tracks dose in the monitor chamber, so fluence goes as D_air / dE/dx(air).
	sp, err := StoppingPowerAir(l.MeasuredEnergy)
	if err != nil {
		return err
	}
	l.MUToParticles = p.VendorFactor / sp
	for i := range l.Spots {
		s := &l.Spots[i]
		s.Particles = s.MU * l.MUToParticles * f.Scaling
	}
	return nil
}

// RecomputeAggregates rebuilds the spot extents and MU and particle sums of
// every layer, field and the plan. Extents only consider spots with a
// non-zero weight and are zero when there are none.
func RecomputeAggregates(p *plan.Plan) {
	var planAcc acc
	for _, f := range p.Fields {
		var fieldAcc acc
		for _, l := range f.Layers {
			var layerAcc acc
			for _, s := range l.Spots {
				layerAcc.addSpot(s)
			}
			l.Aggregates = layerAcc.result()
			fieldAcc.merge(layerAcc)
		}
		f.Aggregates = fieldAcc.result()
		planAcc.merge(fieldAcc)
	}
	p.Aggregates = planAcc.result()
}

type acc struct {
	seen bool
	agg  plan.Aggregates
}

func (a *acc) addSpot(s plan.Spot) {
	a.agg.CumMU += s.MU
	a.agg.CumParticles += s.Particles
	if s.Weight == 0 {
		return
	}
	a.extend(s.X, s.X, s.Y, s.Y)
}

func (a *acc) extend(xmin, xmax, ymin, ymax float64) {
	if !a.seen {
		a.agg.XMin, a.agg.XMax, a.agg.YMin, a.agg.YMax = xmin, xmax, ymin, ymax
		a.seen = true
		return
	}
	a.agg.XMin = math.Min(a.agg.XMin, xmin)
	a.agg.XMax = math.Max(a.agg.XMax, xmax)
	a.agg.YMin = math.Min(a.agg.YMin, ymin)
	a.agg.YMax = math.Max(a.agg.YMax, ymax)
}

func (a *acc) merge(o acc) {
	a.agg.CumMU += o.agg.CumMU
	a.agg.CumParticles += o.agg.CumParticles
	if o.seen {
		a.extend(o.agg.XMin, o.agg.XMax, o.agg.YMin, o.agg.YMax)
	}
}

func (a acc) result() plan.Aggregates { return a.agg }
