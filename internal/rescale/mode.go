package rescale

import (
	"errors"
	"fmt"
	"math"
)

// ErrConflictingOptions is returned when rescale options that cannot be
// combined are requested together.
var ErrConflictingOptions = errors.New("conflicting rescale options")

// Kind selects how the per-field scale factor is derived.
type Kind int

const (
	// KindFactor scales every field by a fixed factor.
	KindFactor Kind = iota
	// KindTargetDose scales each field so its beam dose equals the target.
	KindTargetDose
	// KindMinimize scales the plan so its smallest spot sits at the minimum MU.
	KindMinimize
	// KindLayerVector only applies per-layer factors.
	KindLayerVector
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFactor:
		return "factor"
	case KindTargetDose:
		return "target-dose"
	case KindMinimize:
		return "minimize"
	case KindLayerVector:
		return "layer-vector"
	default:
		return "unknown"
	}
}

// Mode is a resolved rescale request.
type Mode struct {
	Kind Kind
	// Value is the factor for KindFactor and the dose in Gy for KindTargetDose.
	Value float64
	// LayerFactors holds one factor per physical energy layer, optional.
	LayerFactors []float64
}

// Factor scales every field by f.
func Factor(f float64) Mode { return Mode{Kind: KindFactor, Value: f} }

// TargetDose scales each field to dose Gy.
func TargetDose(dose float64) Mode { return Mode{Kind: KindTargetDose, Value: dose} }

// Minimize derives the factor from the smallest deliverable spot.
func Minimize() Mode { return Mode{Kind: KindMinimize} }

// LayerVector applies per-layer factors with an overall factor of 1.
func LayerVector(v []float64) Mode {
	return Mode{Kind: KindLayerVector, Value: 1, LayerFactors: v}
}

// WithLayerFactors attaches per-layer factors to a factor or dose mode.
func (m Mode) WithLayerFactors(v []float64) Mode {
	m.LayerFactors = v
	return m
}

// String describes the mode for logs and reports.
func (m Mode) String() string {
	s := m.Kind.String()
	switch m.Kind {
	case KindFactor:
		s = fmt.Sprintf("factor %.4f", m.Value)
	case KindTargetDose:
		s = fmt.Sprintf("target dose %.2f Gy", m.Value)
	}
	if len(m.LayerFactors) > 0 {
		s += fmt.Sprintf(" with %d layer factors", len(m.LayerFactors))
	}
	return s
}

// Validate checks the mode is self consistent.
func (m Mode) Validate() error {
	switch m.Kind {
	case KindFactor, KindTargetDose:
		if !(m.Value > 0) || math.IsInf(m.Value, 0) {
			return fmt.Errorf("%s must be a positive finite number, got %v", m.Kind, m.Value)
		}
	case KindMinimize:
		if len(m.LayerFactors) > 0 {
			return fmt.Errorf("%w: minimize cannot be combined with layer factors", ErrConflictingOptions)
		}
	case KindLayerVector:
		if len(m.LayerFactors) == 0 {
			return fmt.Errorf("layer vector mode needs at least one layer factor")
		}
	default:
		return fmt.Errorf("unknown rescale mode %d", m.Kind)
	}
	for i, f := range m.LayerFactors {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("layer factor %d must be a finite number >= 0, got %v", i+1, f)
		}
	}
	return nil
}

// ResolveMode builds a mode from optional command line style inputs. Zero
// factor and dose mean "not given". ok is false when nothing was requested.
func ResolveMode(factor, dose float64, minimize bool, layerFactors []float64) (m Mode, ok bool, err error) {
	switch {
	case minimize && (factor != 0 || dose != 0 || len(layerFactors) > 0):
		return Mode{}, false, fmt.Errorf("%w: minimize cannot be combined with a rescale factor, a target dose or layer weights", ErrConflictingOptions)
	case factor != 0 && dose != 0:
		return Mode{}, false, fmt.Errorf("%w: give either a rescale factor or a target dose", ErrConflictingOptions)
	case minimize:
		m = Minimize()
	case dose != 0:
		m = TargetDose(dose).WithLayerFactors(layerFactors)
	case factor != 0:
		m = Factor(factor).WithLayerFactors(layerFactors)
	case len(layerFactors) > 0:
		m = LayerVector(layerFactors)
	default:
		return Mode{}, false, nil
	}
	if err := m.Validate(); err != nil {
		return Mode{}, false, err
	}
	return m, true, nil
}
