package rescale

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsinham/dicomfix/internal/logging"
	"github.com/mrsinham/dicomfix/internal/plan"
	"github.com/mrsinham/dicomfix/internal/plan/plantest"
)

func newEngine() *Engine {
	return NewEngine(plan.DefaultPolicy(), nil)
}

// checkBookkeeping verifies the cumulative weights and coefficients agree
// with the spot weights of every field.
func checkBookkeeping(t *testing.T, p *plan.Plan) {
	t.Helper()
	for _, f := range p.Fields {
		total := f.TotalWeight()
		assert.InDelta(t, total, f.FinalCumulativeMetersetWeight, 1e-9, "field %d final weight", f.Number)

		var before float64
		for i, l := range f.Layers {
			assert.InDelta(t, before, l.CumulativeMetersetWeight, 1e-9, "field %d layer %d cumulative", f.Number, i)
			before += l.TotalWeight()
			if total > 0 {
				assert.InDelta(t, before/total, l.DoseReferenceCoefficient, 1e-9, "field %d layer %d coefficient", f.Number, i)
			}
		}
		if total > 0 {
			assert.InDelta(t, 1.0, f.Layers[len(f.Layers)-1].DoseReferenceCoefficient, 1e-12)
		}
	}
}

func TestApply_TargetDose(t *testing.T) {
	p := plantest.Plan(plantest.Field(1, 5.5, 100, []float64{20, 5}, []float64{15, 10}))
	orig := p.Clone()

	rep, err := newEngine().Apply(context.Background(), p, TargetDose(11))
	require.NoError(t, err)

	f := p.Fields[0]
	assert.InDelta(t, 11.0, f.BeamDose, 1e-9)
	assert.InDelta(t, 200.0, f.BeamMeterset, 1e-9)
	// Spot weights are not scaled, only the meterset per weight changes.
	assert.InDelta(t, 50.0, f.FinalCumulativeMetersetWeight, 1e-12)
	for i, l := range f.Layers {
		for j, s := range l.Spots {
			assert.Equal(t, orig.Fields[0].Layers[i].Spots[j].Weight, s.Weight)
		}
	}
	require.Len(t, rep.Fields, 1)
	assert.InDelta(t, 2.0, rep.Fields[0].ScaleFactor, 1e-12)
	assert.InDelta(t, 5.5, rep.Fields[0].Before.BeamDose, 1e-12)
	assert.Equal(t, 0, rep.Admission.Discarded)
	checkBookkeeping(t, p)
}

func TestApply_TargetDosePerField(t *testing.T) {
	p := plantest.Plan(
		plantest.Field(1, 2, 50, []float64{25, 25}),
		plantest.Field(2, 4, 50, []float64{25, 25}),
	)

	rep, err := newEngine().Apply(context.Background(), p, TargetDose(8))
	require.NoError(t, err)

	assert.InDelta(t, 4.0, rep.Fields[0].ScaleFactor, 1e-12)
	assert.InDelta(t, 2.0, rep.Fields[1].ScaleFactor, 1e-12)
	for _, f := range p.Fields {
		assert.InDelta(t, 8.0, f.BeamDose, 1e-9)
	}
}

func TestApply_FactorKeepsWeights(t *testing.T) {
	p := plantest.Plan(plantest.Field(1, 2, 100, []float64{40, 10}, []float64{30, 20}))
	orig := p.Clone()

	_, err := newEngine().Apply(context.Background(), p, Factor(3))
	require.NoError(t, err)

	f := p.Fields[0]
	assert.InDelta(t, 300.0, f.BeamMeterset, 1e-9)
	assert.InDelta(t, 6.0, f.BeamDose, 1e-9)
	for i, l := range f.Layers {
		for j, s := range l.Spots {
			assert.Equal(t, orig.Fields[0].Layers[i].Spots[j].Weight, s.Weight)
		}
	}
	checkBookkeeping(t, p)
}

func TestApply_DiscardsSpotsBelowMinMU(t *testing.T) {
	// meterset per weight is 1, so the 0.5 spot sits at 0.5 MU.
	p := plantest.Plan(plantest.Field(1, 1, 10, []float64{0.5, 9.5}))

	rep, err := newEngine().Apply(context.Background(), p, Factor(1))
	require.NoError(t, err)

	require.Equal(t, 1, rep.Admission.Discarded)
	ref := rep.Admission.Rejected[0]
	assert.Equal(t, 1, ref.Field)
	assert.Equal(t, 0, ref.Layer)
	assert.Equal(t, 0, ref.Spot)
	assert.InDelta(t, 100.0, ref.Energy, 1e-12)
	assert.InDelta(t, 0.5, ref.MU, 1e-12)

	f := p.Fields[0]
	assert.Zero(t, f.Layers[0].Spots[0].Weight)
	assert.InDelta(t, 9.5, f.FinalCumulativeMetersetWeight, 1e-12)
	assert.InDelta(t, 10.0, f.BeamMeterset, 1e-12)
	checkBookkeeping(t, p)
}

func TestApply_ZeroMinMUKeepsEverySpot(t *testing.T) {
	p := plantest.Plan(plantest.Field(1, 1, 10, []float64{0.001, 9.999}))

	e := NewEngine(plan.AdmissionPolicy{MinMU: 0}, nil)
	rep, err := e.Apply(context.Background(), p, Factor(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Admission.Discarded)
	assert.InDelta(t, 10.0, p.Fields[0].FinalCumulativeMetersetWeight, 1e-9)
}

func TestApply_LayerVector(t *testing.T) {
	p := plantest.Plan(plantest.Field(1, 1, 40, []float64{10, 10}, []float64{10, 10}))

	_, err := newEngine().Apply(context.Background(), p, LayerVector([]float64{2, 0.5}))
	require.NoError(t, err)

	f := p.Fields[0]
	assert.Equal(t, []float64{20, 20}, weights(f.Layers[0]))
	assert.Equal(t, []float64{5, 5}, weights(f.Layers[2]))
	assert.InDelta(t, 50.0, f.FinalCumulativeMetersetWeight, 1e-12)
	assert.InDelta(t, 40.0, f.BeamMeterset, 1e-12)

	wantCum := []float64{0, 40, 40, 50}
	wantCoef := []float64{0.8, 0.8, 1, 1}
	for i, l := range f.Layers {
		assert.InDelta(t, wantCum[i], l.CumulativeMetersetWeight, 1e-12, "layer %d", i)
		assert.InDelta(t, wantCoef[i], l.DoseReferenceCoefficient, 1e-12, "layer %d", i)
	}
}

func TestApply_LayerFactorsSkipEchoLayers(t *testing.T) {
	// Three physical layers stored as six control point pairs.
	p := plantest.Plan(plantest.Field(1, 1, 30, []float64{10}, []float64{10}, []float64{10}))

	_, err := newEngine().Apply(context.Background(), p, Factor(1).WithLayerFactors([]float64{1, 0, 1}))
	require.NoError(t, err)

	f := p.Fields[0]
	assert.Equal(t, []float64{10}, weights(f.Layers[0]))
	assert.Equal(t, []float64{0}, weights(f.Layers[2]))
	assert.Equal(t, []float64{10}, weights(f.Layers[4]))
	checkBookkeeping(t, p)
}

func TestApply_LayerCountMismatchLeavesPlanUntouched(t *testing.T) {
	p := plantest.Plan(
		plantest.Field(1, 1, 40, []float64{10, 10}, []float64{10, 10}),
		plantest.Field(2, 1, 40, []float64{10}, []float64{10}, []float64{20}),
	)
	orig := p.Clone()

	_, err := newEngine().Apply(context.Background(), p, LayerVector([]float64{1, 2}))
	require.ErrorIs(t, err, plan.ErrLayerCountMismatch)
	assert.Contains(t, err.Error(), "field 2")
	assert.Equal(t, orig, p)
}

func TestApply_Minimize(t *testing.T) {
	p := plantest.Plan(plantest.Field(1, 2, 100, []float64{10, 40}, []float64{20, 30}))

	rep, err := newEngine().Apply(context.Background(), p, Minimize())
	require.NoError(t, err)
	assert.InDelta(t, 0.1, rep.Mode.Value, 1e-12)
	assert.Equal(t, 0, rep.Admission.Discarded)

	f := p.Fields[0]
	mpw, err := f.MetersetPerWeight()
	require.NoError(t, err)
	lowest := math.Inf(1)
	for _, l := range f.Layers {
		for _, s := range l.Spots {
			if s.Weight > 0 {
				lowest = math.Min(lowest, s.Weight*mpw)
			}
		}
	}
	assert.InDelta(t, plan.DefaultMinMU, lowest, 1e-9)

	// The minimized plan is a fixed point.
	k, err := MinimizeFactor(p, plan.DefaultPolicy())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, k, 1e-9)
}

func TestApply_MinimizeKeepsLowestSpot(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 2000; i++ {
		w := func() float64 { return 0.01 + rng.Float64()*10 }
		f := plantest.Field(1, 0.5+rng.Float64()*3, 1+rng.Float64()*400,
			[]float64{w(), w(), w()}, []float64{w(), w()})
		p := plantest.Plan(f)

		rep, err := newEngine().Apply(context.Background(), p, Minimize())
		require.NoError(t, err)
		require.Equal(t, 0, rep.Admission.Discarded, "plan %d: minimized plan discarded %+v", i, rep.Admission.Rejected)

		mpw, err := p.Fields[0].MetersetPerWeight()
		require.NoError(t, err)
		lowest := math.Inf(1)
		for _, l := range p.Fields[0].Layers {
			for _, s := range l.Spots {
				if s.Weight > 0 {
					lowest = math.Min(lowest, s.Weight*mpw)
				}
			}
		}
		require.InDelta(t, plan.DefaultMinMU, lowest, 1e-9, "plan %d", i)
	}
}

func TestMinimizeFactor_Degenerate(t *testing.T) {
	f := plantest.Field(1, 1, 10, []float64{0, 0})
	f.FinalCumulativeMetersetWeight = 1
	_, err := MinimizeFactor(plantest.Plan(f), plan.DefaultPolicy())
	assert.ErrorIs(t, err, plan.ErrDegeneratePlan)
}

func TestMinimizeFactor_NeedsPositiveThreshold(t *testing.T) {
	p := plantest.Plan(plantest.Field(1, 1, 10, []float64{5, 5}))
	_, err := MinimizeFactor(p, plan.AdmissionPolicy{MinMU: 0})
	assert.Error(t, err)
}

func TestApply_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *plan.Plan
		mode    Mode
		wantErr error
	}{
		{
			name: "zero cumulative weight",
			build: func() *plan.Plan {
				return plantest.Plan(plantest.Field(1, 1, 10, []float64{0, 0}))
			},
			mode:    Factor(2),
			wantErr: plan.ErrZeroCumulativeWeight,
		},
		{
			name: "zero beam dose",
			build: func() *plan.Plan {
				return plantest.Plan(plantest.Field(1, 0, 10, []float64{5, 5}))
			},
			mode:    TargetDose(2),
			wantErr: ErrZeroBeamDose,
		},
		{
			name: "minimize with layer factors",
			build: func() *plan.Plan {
				return plantest.Plan(plantest.Field(1, 1, 10, []float64{5, 5}))
			},
			mode:    Minimize().WithLayerFactors([]float64{1}),
			wantErr: ErrConflictingOptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.build()
			orig := p.Clone()
			_, err := newEngine().Apply(context.Background(), p, tt.mode)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, orig, p)
		})
	}
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name     string
		factor   float64
		dose     float64
		minimize bool
		layers   []float64
		wantKind Kind
		wantOK   bool
		wantErr  bool
	}{
		{name: "nothing requested"},
		{name: "factor", factor: 2, wantKind: KindFactor, wantOK: true},
		{name: "dose", dose: 4, wantKind: KindTargetDose, wantOK: true},
		{name: "minimize", minimize: true, wantKind: KindMinimize, wantOK: true},
		{name: "layers only", layers: []float64{1, 2}, wantKind: KindLayerVector, wantOK: true},
		{name: "dose with layers", dose: 4, layers: []float64{1}, wantKind: KindTargetDose, wantOK: true},
		{name: "factor and dose", factor: 2, dose: 4, wantErr: true},
		{name: "minimize and factor", minimize: true, factor: 2, wantErr: true},
		{name: "minimize and layers", minimize: true, layers: []float64{1}, wantErr: true},
		{name: "negative factor", factor: -1, wantErr: true},
		{name: "negative layer", factor: 1, layers: []float64{-1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok, err := ResolveMode(tt.factor, tt.dose, tt.minimize, tt.layers)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantKind, m.Kind)
			}
		})
	}
}

func TestParseWeights(t *testing.T) {
	got, err := ParseWeights(strings.NewReader("1.0\n\n0.5,\n  2 \n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5, 2}, got)

	_, err = ParseWeights(strings.NewReader("1.0\nabc\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ParseWeights(strings.NewReader("\n\n"))
	assert.Error(t, err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "factor 2.0000", Factor(2).String())
	assert.Equal(t, "target dose 11.00 Gy with 3 layer factors", TargetDose(11).WithLayerFactors([]float64{1, 1, 1}).String())
	assert.Equal(t, "minimize", Minimize().String())
}

func weights(l *plan.Layer) []float64 {
	out := make([]float64, len(l.Spots))
	for i, s := range l.Spots {
		out[i] = s.Weight
	}
	return out
}

func TestApply_DiscardLogUsesStorageLayer(t *testing.T) {
	// The 0.5 MU spot sits on the second data layer, storage index 2.
	p := plantest.Plan(plantest.Field(1, 1, 10, []float64{5, 4.5}, []float64{0.5}))
	var buf bytes.Buffer
	e := NewEngine(plan.DefaultPolicy(), logging.New(logging.Config{Level: "warn", Format: "json", Output: &buf}))

	rep, err := e.Apply(context.Background(), p, Factor(1))
	require.NoError(t, err)
	require.Equal(t, 1, rep.Admission.Discarded)
	ref := rep.Admission.Rejected[0]
	assert.Equal(t, 2, ref.Layer)
	assert.Equal(t, 0, ref.Origin)
	assert.Contains(t, buf.String(), `"layer":2`)
}
