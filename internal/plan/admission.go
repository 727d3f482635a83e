package plan

import (
	"fmt"
	"math"
)

// DefaultMinMU is the smallest deliverable spot meterset.
const DefaultMinMU = 1.0

// Decision is the outcome of a spot admission check.
type Decision int

const (
	Accept Decision = iota
	Reject
)

// String returns the decision name.
func (d Decision) String() string {
	if d == Reject {
		return "REJECT"
	}
	return "ACCEPT"
}

// Admit rejects a spot with positive weight whose MU falls below minMU.
// Zero weight spots are placeholders and are always accepted.
func Admit(weight, mu, minMU float64) Decision {
	if weight > 0 && mu < minMU {
		return Reject
	}
	return Accept
}

// AdmissionPolicy carries the minimum MU threshold.
type AdmissionPolicy struct {
	MinMU float64
}

// DefaultPolicy returns the policy with DefaultMinMU.
func DefaultPolicy() AdmissionPolicy {
	return AdmissionPolicy{MinMU: DefaultMinMU}
}

// Validate checks the threshold is a finite, non-negative number.
func (p AdmissionPolicy) Validate() error {
	if math.IsNaN(p.MinMU) || math.IsInf(p.MinMU, 0) || p.MinMU < 0 {
		return fmt.Errorf("invalid minimum MU %v: must be a finite value >= 0", p.MinMU)
	}
	return nil
}

// Admit applies the policy threshold.
func (p AdmissionPolicy) Admit(weight, mu float64) Decision {
	return Admit(weight, mu, p.MinMU)
}

// SpotRef identifies a rejected spot. Field is the beam number, Layer the
// storage index within the field, Spot the index within the layer. Origin
// is the source beam index, which duplicated fields share.
type SpotRef struct {
	Field  int
	Origin int
	Layer  int
	Spot   int
	Energy float64
	X, Y   float64
	MU     float64
}

// AdmissionReport tallies rejected spots.
type AdmissionReport struct {
	Discarded int
	Rejected  []SpotRef
}

// Record adds one rejection.
func (r *AdmissionReport) Record(ref SpotRef) {
	r.Discarded++
	r.Rejected = append(r.Rejected, ref)
}

// Merge folds another report into r.
func (r *AdmissionReport) Merge(o AdmissionReport) {
	r.Discarded += o.Discarded
	r.Rejected = append(r.Rejected, o.Rejected...)
}

// Percent returns the discarded share of total spots, in percent.
func (r AdmissionReport) Percent(total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(r.Discarded) / float64(total) * 100
}
