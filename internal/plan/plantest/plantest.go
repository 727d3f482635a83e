// Package plantest builds small in-memory plans for tests.
package plantest

import "github.com/mrsinham/dicomfix/internal/plan"

// Field builds a field with one data layer and one zero weight echo layer
// per weights slice, the way RT Ion Plan files store them. Bookkeeping
// values are consistent with the weights.
func Field(number int, dose, meterset float64, layers ...[]float64) *plan.Field {
	f := &plan.Field{
		Number:           number,
		Name:             "Field " + string(rune('A'+number-1)),
		TreatmentMachine: "TR1",
		BeamDose:         dose,
		BeamMeterset:     meterset,
		Scaling:          1,
		Origin:           number - 1,
	}
	for i, weights := range layers {
		energy := 100 + 10*float64(i)
		data := &plan.Layer{NominalEnergy: energy, MeasuredEnergy: energy, Paintings: 1, Origin: 2 * i}
		echo := &plan.Layer{NominalEnergy: energy, MeasuredEnergy: energy, Paintings: 1, Origin: 2*i + 1}
		for k, w := range weights {
			x := float64(k)*5 - 10
			y := float64(i)*5 - 10
			data.Spots = append(data.Spots, plan.Spot{X: x, Y: y, Weight: w})
			echo.Spots = append(echo.Spots, plan.Spot{X: x, Y: y})
		}
		f.Layers = append(f.Layers, data, echo)
	}

	f.RecomputeCumulativeWeights()
	return f
}

// Plan wraps fields into a plan with default metadata.
func Plan(fields ...*plan.Field) *plan.Plan {
	return &plan.Plan{
		Metadata: plan.Metadata{
			PatientName:    "DOE^JANE",
			PatientID:      "P0001",
			PlanLabel:      "TEST",
			ApprovalStatus: "UNAPPROVED",
			PlanIntent:     "RESEARCH",
			Tags:           map[string]string{},
		},
		Fields:       fields,
		Scaling:      1,
		VendorFactor: plan.VendorFactorVarian,
	}
}
