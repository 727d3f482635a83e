package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mrsinham/dicomfix/internal/plan"
)

// ErrInvalidColumns is returned for sobp.dat layouts other than 5, 6 or 7 columns.
var ErrInvalidColumns = errors.New("unsupported sobp.dat column count")

// Columns selects the sobp.dat layout.
type Columns int

const (
	// Columns5: energy[GeV] x[cm] y[cm] FWHM[cm] weight
	Columns5 Columns = 5
	// Columns6: energy[GeV] x[cm] y[cm] FWHMx[cm] FWHMy[cm] weight
	Columns6 Columns = 6
	// Columns7: energy[GeV] sigmaT0[GeV] x[cm] y[cm] FWHMx[cm] FWHMy[cm] weight
	Columns7 Columns = 7
)

// ParseColumns parses a column count.
func ParseColumns(s string) (Columns, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidColumns, s)
	}
	c := Columns(n)
	return c, c.Validate()
}

// Validate checks the layout is supported.
func (c Columns) Validate() error {
	switch c {
	case Columns5, Columns6, Columns7:
		return nil
	}
	return fmt.Errorf("%w: %d (valid: 5, 6, 7)", ErrInvalidColumns, int(c))
}

func (c Columns) header() string {
	if c == Columns7 {
		return "*ENERGY(GEV) SigmaT0(GEV) X(CM)   Y(CM)    FWHMx(cm) FWHMy(cm) WEIGHT\n"
	}
	return "*ENERGY(GEV) X(CM)   Y(CM)    FWHMx(cm) FWHMy(cm) WEIGHT\n"
}

// SobpOptions controls sobp.dat output.
type SobpOptions struct {
	Columns Columns
	Nominal bool // write nominal instead of measured energies
	FlipXY  bool // swap axes, applied after FlipX and FlipY
	FlipX   bool
	FlipY   bool
}

// WriteSobp writes the particle weighted spots of one field. Empty layers
// are skipped.
func WriteSobp(w io.Writer, f *plan.Field, opts SobpOptions) error {
	if err := opts.Columns.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(opts.Columns.header())
	for _, l := range f.Layers {
		if l.IsEmpty() {
			continue
		}
		energy := l.MeasuredEnergy * 0.001 // MeV -> GeV
		if opts.Nominal {
			energy = l.NominalEnergy * 0.001
		}
		espread := l.EnergySpread * 0.001
		fwhmx, fwhmy := l.SpotSizeX*0.1, l.SpotSizeY*0.1 // mm -> cm
		if opts.FlipXY {
			fwhmx, fwhmy = fwhmy, fwhmx
		}

		for _, s := range l.Spots {
			x, y := s.X, s.Y
			if opts.FlipX {
				x = -x
			}
			if opts.FlipY {
				y = -y
			}
			if opts.FlipXY {
				x, y = y, x
			}
			x, y = x*0.1, y*0.1

			switch opts.Columns {
			case Columns7:
				fmt.Fprintf(bw, "%8.6f     %10.8f  %6.2f   %6.2f  %6.2f   %6.2f     %10.4e\n",
					energy, espread, x, y, fwhmx, fwhmy, s.Particles)
			case Columns6:
				fmt.Fprintf(bw, "%8.6f     %6.2f   %6.2f  %6.2f   %6.2f     %10.4e\n",
					energy, x, y, fwhmx, fwhmy, s.Particles)
			default:
				fmt.Fprintf(bw, "%8.6f     %6.2f   %6.2f  %6.2f   %10.4e\n",
					energy, x, y, fwhmx, s.Particles)
			}
		}
	}
	return bw.Flush()
}

// FieldFileName returns path with a two digit field number added to its
// stem: sobp.dat becomes sobp_01.dat.
func FieldFileName(path string, field int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%02d%s", strings.TrimSuffix(path, ext), field, ext)
}

// Sobp writes field number fieldNr (counting from 1) to path. fieldNr 0
// writes every field to its own file named by FieldFileName.
func Sobp(path string, p *plan.Plan, fieldNr int, opts SobpOptions) ([]string, error) {
	if fieldNr < 0 || fieldNr > len(p.Fields) {
		return nil, fmt.Errorf("field %d not in plan with %d fields", fieldNr, len(p.Fields))
	}
	var files []string
	for i, f := range p.Fields {
		out := path
		switch {
		case fieldNr == 0:
			out = FieldFileName(path, i+1)
		case fieldNr != i+1:
			continue
		}
		if err := writeFile(out, func(w io.Writer) error { return WriteSobp(w, f, opts) }); err != nil {
			return files, err
		}
		files = append(files, out)
	}
	return files, nil
}
