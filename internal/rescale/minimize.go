package rescale

import (
	"fmt"
	"math"

	"github.com/mrsinham/dicomfix/internal/plan"
)

// MinimizeFactor returns the factor that brings the smallest positive spot
// of the plan to the policy minimum MU. Spot MUs use each field's current
// meterset per weight.
//
// The factor is rounded up to the first float64 for which every positive
// spot, recomputed the way Engine.Apply does, still reaches the minimum.
func MinimizeFactor(p *plan.Plan, policy plan.AdmissionPolicy) (float64, error) {
	if !(policy.MinMU > 0) {
		return 0, fmt.Errorf("minimize needs a positive minimum MU, got %v", policy.MinMU)
	}
	lowest := math.Inf(1)
	for _, f := range p.Fields {
		mpw, err := f.MetersetPerWeight()
		if err != nil {
			return 0, err
		}
		for _, l := range f.Layers {
			for _, s := range l.Spots {
				if s.Weight <= 0 {
					continue
				}
				if mu := s.Weight * mpw; mu < lowest {
					lowest = mu
				}
			}
		}
	}
	if math.IsInf(lowest, 1) || lowest <= 0 {
		return 0, plan.ErrDegeneratePlan
	}

	k := policy.MinMU / lowest
	for range 64 {
		if lowestRescaledMU(p, k) >= policy.MinMU {
			break
		}
		k = math.Nextafter(k, math.Inf(1))
	}
	return k, nil
}

// lowestRescaledMU mirrors the admission arithmetic of applyField for factor k.
func lowestRescaledMU(p *plan.Plan, k float64) float64 {
	lowest := math.Inf(1)
	for _, f := range p.Fields {
		mpw := f.BeamMeterset * k / f.FinalCumulativeMetersetWeight
		for _, l := range f.Layers {
			for _, s := range l.Spots {
				if s.Weight > 0 {
					lowest = math.Min(lowest, s.Weight*mpw)
				}
			}
		}
	}
	return lowest
}
