// Package export writes plans in the plain text formats used by treatment
// machine service tools and Monte Carlo transport codes.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrsinham/dicomfix/internal/plan"
)

// CreatorVersion is written into RACEHORSE headers.
var CreatorVersion = "0.1"

// RacehorseFileName names the spot list of one energy layer. field and
// layer count from 1, layer counting physical layers only.
func RacehorseFileName(base string, field, layer int, energy float64) string {
	return fmt.Sprintf("%s_field%02d_layer_%02d__%06.2fMeV.csv", base, field, layer, energy)
}

// Racehorse writes one Varian service mode spot list per physical energy
// layer and returns the file names written. Spot doses are given in MU.
func Racehorse(base string, p *plan.Plan, now time.Time) ([]string, error) {
	var files []string
	for i, f := range p.Fields {
		mpw, err := f.MetersetPerWeight()
		if err != nil {
			return files, err
		}
		n := 0
		for _, l := range f.Layers {
			if l.TotalWeight() <= 0 {
				continue
			}
			n++
			name := RacehorseFileName(base, i+1, n, l.NominalEnergy)
			if err := writeFile(name, func(w io.Writer) error {
				return WriteRacehorseLayer(w, p.Metadata.PlanLabel, i+1, n, l, mpw, now)
			}); err != nil {
				return files, err
			}
			files = append(files, name)
		}
	}
	return files, nil
}

// WriteRacehorseLayer writes the spot list of a single layer.
func WriteRacehorseLayer(w io.Writer, label string, field, layer int, l *plan.Layer, mpw float64, now time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "* ----- RACEHORSE Spot List -----\n")
	fmt.Fprintf(bw, "* Field: %02d  Layer: %02d\n\n", field, layer)
	fmt.Fprintf(bw, "#HEADER\n")
	fmt.Fprintf(bw, "NAME, %s\n", label)
	fmt.Fprintf(bw, "DATE, %s\n", now.Format("02-01-2006"))
	fmt.Fprintf(bw, "CREATORNAME, DicomFix\n")
	fmt.Fprintf(bw, "CREATORVERSION, %s\n\n", CreatorVersion)
	fmt.Fprintf(bw, "#VALUES\n")
	fmt.Fprintf(bw, "Index;Position x;Position y;Dose\n")
	for i, s := range l.Spots {
		fmt.Fprintf(bw, "%2d,%8.2f,%8.2f,%8.2f\n", i, s.X, s.Y, s.Weight*mpw)
	}
	return bw.Flush()
}

// WriteSpotList writes every spot of the plan as "energy, x, y, MU" rows,
// energy in MeV and positions in mm.
func WriteSpotList(w io.Writer, p *plan.Plan) error {
	bw := bufio.NewWriter(w)
	for _, f := range p.Fields {
		mpw, err := f.MetersetPerWeight()
		if err != nil {
			return err
		}
		for _, l := range f.Layers {
			if l.TotalWeight() <= 0 {
				continue
			}
			for _, s := range l.Spots {
				fmt.Fprintf(bw, "%8.2f,%8.2f,%8.2f,%8.2f\n", l.NominalEnergy, s.X, s.Y, s.Weight*mpw)
			}
		}
	}
	return bw.Flush()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
