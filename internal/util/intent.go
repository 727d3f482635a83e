package util

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// PlanIntent is the DICOM RT plan intent.
type PlanIntent int

const (
	IntentCurative PlanIntent = iota
	IntentPalliative
	IntentProphylactic
	IntentVerification
	IntentMachineQA
	IntentResearch
	IntentService
)

var intentNames = []string{
	IntentCurative:     "CURATIVE",
	IntentPalliative:   "PALLIATIVE",
	IntentProphylactic: "PROPHYLACTIC",
	IntentVerification: "VERIFICATION",
	IntentMachineQA:    "MACHINE_QA",
	IntentResearch:     "RESEARCH",
	IntentService:      "SERVICE",
}

// String returns the DICOM defined term.
func (i PlanIntent) String() string {
	if i < 0 || int(i) >= len(intentNames) {
		return "UNKNOWN"
	}
	return intentNames[i]
}

// ParsePlanIntent parses a defined term, case-insensitively. A dash may be
// used in place of the underscore.
func ParsePlanIntent(s string) (PlanIntent, error) {
	norm := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
	for i, name := range intentNames {
		if name == norm {
			return PlanIntent(i), nil
		}
	}
	return IntentCurative, fmt.Errorf("invalid plan intent: %s (valid: %s)", s, strings.Join(intentNames, ", "))
}

// GeneratePlanIntent draws an intent with a clinic-like distribution:
// 60% CURATIVE, 20% PALLIATIVE, 10% VERIFICATION, 10% RESEARCH.
func GeneratePlanIntent(rng *rand.Rand) PlanIntent {
	if rng == nil {
		rng = defaultRNG
	}
	r := rng.Float64()
	switch {
	case r < 0.60:
		return IntentCurative
	case r < 0.80:
		return IntentPalliative
	case r < 0.90:
		return IntentVerification
	default:
		return IntentResearch
	}
}
