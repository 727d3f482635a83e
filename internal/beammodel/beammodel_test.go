package beammodel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sixColumns = `# nominal, measured, spread, ppmu, sigma x, sigma y
70.0, 70.3, 0.60, 1.10e8, 6.5, 6.4
100.0, 100.2, 0.65, 1.25e8, 5.0, 4.9
150.0, 149.8, 0.70, 1.40e8, 3.8, 3.9
# trailing comment
200.0, 199.5, 0.80, 1.55e8, 3.1, 3.2
`

func TestParse_SixColumns(t *testing.T) {
	m, err := Parse(strings.NewReader(sixColumns), true)
	require.NoError(t, err)

	assert.False(t, m.HasDivergence())
	assert.True(t, m.UsesNominal())
	lo, hi := m.Range()
	assert.Equal(t, 70.0, lo)
	assert.Equal(t, 200.0, hi)
}

func TestLookup_HitsNodesExactly(t *testing.T) {
	m, err := Parse(strings.NewReader(sixColumns), true)
	require.NoError(t, err)

	p, err := m.Lookup(100)
	require.NoError(t, err)
	assert.InDelta(t, 100.2, p.MeasuredEnergy, 1e-9)
	assert.InDelta(t, 1.25e8, p.ParticlesPerMU, 1e-3)
	assert.InDelta(t, 5.0, p.SigmaX, 1e-9)

	p, err = m.Lookup(200)
	require.NoError(t, err)
	assert.InDelta(t, 3.2, p.SigmaY, 1e-9)
}

func TestLookup_MonotoneBetweenNodes(t *testing.T) {
	m, err := Parse(strings.NewReader(sixColumns), true)
	require.NoError(t, err)

	prev := 0.0
	for e := 70.0; e <= 200; e += 2.5 {
		p, err := m.Lookup(e)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.ParticlesPerMU, prev, "ppmu must not decrease at %v MeV", e)
		prev = p.ParticlesPerMU
	}
}

func TestLookup_OutOfRange(t *testing.T) {
	m, err := Parse(strings.NewReader(sixColumns), true)
	require.NoError(t, err)

	for _, e := range []float64{69.9, 200.1, 0, 1000} {
		_, err := m.Lookup(e)
		assert.ErrorIs(t, err, ErrEnergyOutOfRange, "energy %v", e)
	}
}

func TestParse_TenColumns(t *testing.T) {
	in := `70,70.3,0.6,1.1e8,6.5,6.4,0.003,0.003,0.01,0.01
200,199.5,0.8,1.55e8,3.1,3.2,0.002,0.002,0.02,0.02
`
	m, err := Parse(strings.NewReader(in), true)
	require.NoError(t, err)
	assert.True(t, m.HasDivergence())

	p, err := m.Lookup(135)
	require.NoError(t, err)
	assert.InDelta(t, 0.0025, p.DivX, 1e-12)
	assert.InDelta(t, 0.015, p.CovY, 1e-12)
}

func TestParse_MeasuredEnergyKey(t *testing.T) {
	m, err := Parse(strings.NewReader(sixColumns), false)
	require.NoError(t, err)

	lo, hi := m.Range()
	assert.Equal(t, 70.3, lo)
	assert.Equal(t, 199.5, hi)

	p, err := m.Lookup(149.8)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, p.NominalEnergy, 1e-9)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"five columns", "70,70,0.6,1e8,6\n100,100,0.6,1e8,5\n"},
		{"ragged rows", "70,70,0.6,1e8,6,6\n100,100,0.6,1e8,5\n"},
		{"not a number", "70,70,0.6,1e8,6,x\n100,100,0.6,1e8,5,5\n"},
		{"single row", "70,70,0.6,1e8,6,6\n"},
		{"duplicate energy", "70,70,0.6,1e8,6,6\n70,71,0.6,1e8,5,5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in), true)
			assert.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bm.csv")
	require.NoError(t, os.WriteFile(path, []byte(sixColumns), 0o644))

	m, err := FromCSV(path, true)
	require.NoError(t, err)
	_, err = m.Lookup(120)
	assert.NoError(t, err)

	_, err = FromCSV(filepath.Join(t.TempDir(), "missing.csv"), true)
	assert.Error(t, err)
}

func TestFWHM(t *testing.T) {
	assert.InDelta(t, 2.354820045, FWHM(1), 1e-9)
}
