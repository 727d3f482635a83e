package transform

import (
	"fmt"

	"github.com/mrsinham/dicomfix/internal/plan"
)

// Repaint splits every spot into n passes: physical layers get their
// weights divided by n and the spot list repeated n times, echo layers only
// get their positions repeated. Repeated spots are admitted again with the
// field's meterset per weight, since dividing can push a spot below the
// threshold. Cumulative bookkeeping is rebuilt afterwards.
func Repaint(p *plan.Plan, n int, policy plan.AdmissionPolicy) (plan.AdmissionReport, error) {
	var rep plan.AdmissionReport
	if n < 1 {
		return rep, fmt.Errorf("repaint count must be >= 1, got %d", n)
	}
	if err := policy.Validate(); err != nil {
		return rep, err
	}
	mpws := make([]float64, len(p.Fields))
	for i, f := range p.Fields {
		mpw, err := f.MetersetPerWeight()
		if err != nil {
			return rep, err
		}
		mpws[i] = mpw
	}
	if n == 1 {
		return rep, nil
	}

	for fi, f := range p.Fields {
		for li, l := range f.Layers {
			physical := !l.IsEmpty()
			spots := make([]plan.Spot, 0, len(l.Spots)*n)
			for pass := 0; pass < n; pass++ {
				for _, s := range l.Spots {
					if physical {
						s.Weight /= float64(n)
					} else {
						s.Weight = 0
					}
					s.MU, s.Particles = 0, 0
					spots = append(spots, s)
				}
			}
			if physical {
				for si := range spots {
					s := &spots[si]
					mu := s.Weight * mpws[fi]
					if policy.Admit(s.Weight, mu) == plan.Reject {
						rep.Record(plan.SpotRef{
							Field: f.Number, Origin: f.Origin, Layer: li, Spot: si,
							Energy: l.NominalEnergy, X: s.X, Y: s.Y, MU: mu,
						})
						s.Weight = 0
					}
				}
			}
			l.Spots = spots
			l.Paintings = max(l.Paintings, 1) * n
		}
		f.RecomputeCumulativeWeights()
	}
	return rep, nil
}
