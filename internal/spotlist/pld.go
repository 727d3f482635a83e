package spotlist

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mrsinham/dicomfix/internal/beammodel"
	"github.com/mrsinham/dicomfix/internal/plan"
)

// pldEpsilon flushes float noise in PLD files to zero.
const pldEpsilon = 1e-10

// LoadPLD reads an IBA PLD file.
func LoadPLD(path string, scaling float64) (*plan.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	p, err := ParsePLD(f, scaling)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePLD reads a PLD plan holding a single field. The header line is
//
//	Beam, patient id, last name, initials, first name, plan label, beam name, MU, cumulative weight, layers
//
// and each layer is a "Layer, sigma, energy, MU, element lines[, paintings]"
// record followed by that many "Element, x, y, MU" records. Elements carry
// every position twice, once without MU; those are dropped. Spot weights are
// the spot MU.
func ParsePLD(r io.Reader, scaling float64) (*plan.Plan, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if len(records) == 0 || len(records[0]) < 10 {
		return nil, fmt.Errorf("%w: PLD header needs 10 values", ErrUnsupportedFormat)
	}

	h := records[0]
	meterset, err := pldFloat(h[7])
	if err != nil {
		return nil, fmt.Errorf("header meterset: %w", err)
	}
	f := &plan.Field{
		Number:       1,
		Name:         strings.TrimSpace(h[6]),
		BeamMeterset: meterset,
		Scaling:      scaling,
	}
	p := &plan.Plan{
		Metadata: plan.Metadata{
			PatientID:   strings.TrimSpace(h[1]),
			PatientName: strings.TrimSpace(h[2]),
			PlanLabel:   strings.TrimSpace(h[5]),
			Tags:        map[string]string{},
		},
		Fields:       []*plan.Field{f},
		Scaling:      scaling,
		VendorFactor: plan.VendorFactorIBA,
	}

	for i := 1; i < len(records); i++ {
		rec := records[i]
		if strings.TrimSpace(rec[0]) != "Layer" {
			continue
		}
		l, n, err := parsePLDLayer(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if n < 0 || i+n >= len(records) {
			return nil, fmt.Errorf("%w: line %d: layer declares %d elements, file ends first", ErrUnsupportedFormat, i+1, n)
		}
		for _, el := range records[i+1 : i+1+n] {
			if len(el) < 4 || strings.TrimSpace(el[0]) != "Element" {
				return nil, fmt.Errorf("%w: line %d: expected %d element lines", ErrUnsupportedFormat, i+1, n)
			}
			var vals [3]float64
			for k := range vals {
				if vals[k], err = pldFloat(el[k+1]); err != nil {
					return nil, fmt.Errorf("line %d: %w", i+1, err)
				}
				if math.Abs(vals[k]) < pldEpsilon {
					vals[k] = 0
				}
			}
			if mu := vals[2]; mu > 0 {
				l.Spots = append(l.Spots, plan.Spot{X: vals[0], Y: vals[1], Weight: mu, MU: mu})
			}
		}
		f.Layers = append(f.Layers, l)
		i += n
	}
	if len(f.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers in PLD file", ErrUnsupportedFormat)
	}
	f.RecomputeCumulativeWeights()
	return p, nil
}

func parsePLDLayer(rec []string) (*plan.Layer, int, error) {
	if len(rec) < 5 {
		return nil, 0, fmt.Errorf("%w: layer record needs 5 values, got %d", ErrUnsupportedFormat, len(rec))
	}
	var vals [4]float64
	for k := range vals {
		v, err := pldFloat(rec[k+1])
		if err != nil {
			return nil, 0, err
		}
		vals[k] = v
	}
	fwhm := beammodel.FWHM(vals[0])
	l := &plan.Layer{
		NominalEnergy:  vals[1],
		MeasuredEnergy: vals[1],
		SpotSizeX:      fwhm,
		SpotSizeY:      fwhm,
	}
	if len(rec) > 5 {
		n, err := strconv.Atoi(strings.TrimSpace(rec[5]))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: paintings %q", ErrUnsupportedFormat, rec[5])
		}
		l.Paintings = n
	}
	return l, int(vals[3]), nil
}

func pldFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrUnsupportedFormat, s)
	}
	return v, nil
}
