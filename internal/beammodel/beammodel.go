// Package beammodel loads a measured beam model and interpolates it as a
// function of beam energy.
package beammodel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/interp"
)

var (
	// ErrInvalidFormat is returned for files that do not have 6 or 10 numeric columns.
	ErrInvalidFormat = errors.New("invalid beam model format")

	// ErrEnergyOutOfRange is returned for lookups outside the calibrated grid.
	ErrEnergyOutOfRange = errors.New("energy outside beam model range")
)

// Column order of the calibration file.
const (
	colNominal = iota
	colMeasured
	colSpread
	colPPMU
	colSigmaX
	colSigmaY
	colDivX
	colDivY
	colCovX
	colCovY
)

// fwhmPerSigma converts a gaussian sigma into its full width at half maximum.
var fwhmPerSigma = 2 * math.Sqrt(2*math.Ln2)

// FWHM returns the full width at half maximum of a gaussian with the given sigma.
func FWHM(sigma float64) float64 {
	return sigma * fwhmPerSigma
}

// Point is the interpolated beam model at one energy.
type Point struct {
	NominalEnergy  float64 // MeV
	MeasuredEnergy float64 // MeV
	EnergySpread   float64 // MeV, sigma
	ParticlesPerMU float64
	SigmaX, SigmaY float64 // mm

	// Only set when the model has divergence columns.
	DivX, DivY float64 // rad
	CovX, CovY float64 // mm
}

// Model is an immutable interpolated beam model.
type Model struct {
	useNominal    bool
	hasDivergence bool
	emin, emax    float64
	curves        []*interp.FritschButland
}

// FromCSV loads a beam model file. When useNominal is true, lookups are keyed
// by nominal energy, otherwise by measured energy.
func FromCSV(path string, useNominal bool) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open beam model: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := Parse(f, useNominal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse reads comma separated calibration rows. Lines starting with '#' are skipped.
func Parse(r io.Reader, useNominal bool) (*Model, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows [][]float64
	cols := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if cols == 0 {
			cols = len(rec)
			if cols != 6 && cols != 10 {
				return nil, fmt.Errorf("%w: %d columns, expected 6 or 10", ErrInvalidFormat, cols)
			}
		}
		if len(rec) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrInvalidFormat, len(rows)+1, len(rec), cols)
		}
		row := make([]float64, cols)
		for i, s := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %d: %q is not a number", ErrInvalidFormat, len(rows)+1, i+1, s)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return New(rows, useNominal)
}

// New builds a model from calibration rows in file column order.
func New(rows [][]float64, useNominal bool) (*Model, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 energies, got %d", ErrInvalidFormat, len(rows))
	}
	cols := len(rows[0])
	if cols != 6 && cols != 10 {
		return nil, fmt.Errorf("%w: %d columns, expected 6 or 10", ErrInvalidFormat, cols)
	}

	key := colNominal
	if !useNominal {
		key = colMeasured
	}
	sorted := make([][]float64, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i][key] < sorted[j][key] })

	xs := make([]float64, len(sorted))
	for i, row := range sorted {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrInvalidFormat, i+1, len(row), cols)
		}
		xs[i] = row[key]
		if i > 0 && xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("%w: duplicate energy %g", ErrInvalidFormat, xs[i])
		}
	}

	m := &Model{
		useNominal:    useNominal,
		hasDivergence: cols == 10,
		emin:          xs[0],
		emax:          xs[len(xs)-1],
		curves:        make([]*interp.FritschButland, cols),
	}
	for c := 0; c < cols; c++ {
		ys := make([]float64, len(sorted))
		for i, row := range sorted {
			ys[i] = row[c]
		}
		fb := &interp.FritschButland{}
		if err := fb.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("fit column %d: %w", c+1, err)
		}
		m.curves[c] = fb
	}
	return m, nil
}

// HasDivergence reports whether the model carries divergence and covariance columns.
func (m *Model) HasDivergence() bool { return m.hasDivergence }

// UsesNominal reports whether lookups are keyed by nominal energy.
func (m *Model) UsesNominal() bool { return m.useNominal }

// Range returns the calibrated energy interval.
func (m *Model) Range() (lo, hi float64) { return m.emin, m.emax }

// Lookup interpolates the model at energy. Energies outside the calibrated
// grid are rejected.
func (m *Model) Lookup(energy float64) (Point, error) {
	if math.IsNaN(energy) || energy < m.emin || energy > m.emax {
		return Point{}, fmt.Errorf("%w: %.3f MeV not in [%.3f, %.3f]", ErrEnergyOutOfRange, energy, m.emin, m.emax)
	}
	at := func(c int) float64 { return m.curves[c].Predict(energy) }
	p := Point{
		NominalEnergy:  at(colNominal),
		MeasuredEnergy: at(colMeasured),
		EnergySpread:   at(colSpread),
		ParticlesPerMU: at(colPPMU),
		SigmaX:         at(colSigmaX),
		SigmaY:         at(colSigmaY),
	}
	if m.hasDivergence {
		p.DivX = at(colDivX)
		p.DivY = at(colDivY)
		p.CovX = at(colCovX)
		p.CovY = at(colCovY)
	}
	return p, nil
}
