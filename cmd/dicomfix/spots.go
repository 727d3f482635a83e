package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrsinham/dicomfix/internal/beammodel"
	"github.com/mrsinham/dicomfix/internal/export"
	"github.com/mrsinham/dicomfix/internal/metrics"
	"github.com/mrsinham/dicomfix/internal/particles"
	"github.com/mrsinham/dicomfix/internal/plan"
	"github.com/mrsinham/dicomfix/internal/spotlist"
	"github.com/mrsinham/dicomfix/internal/util"
)

// spotsOptions is the parsed `dicomfix spots` command line.
type spotsOptions struct {
	input, output string
	beamModel     string
	field         int
	diag          bool
	nominal       bool
	scale         float64
	columns       export.Columns
	flip          bool
	flipX, flipY  bool
	topas         bool
	nstat         float64
	metricsFile   string
	quiet         bool
}

func runSpots(args []string) error {
	o := spotsOptions{}
	fs := flag.NewFlagSet("dicomfix spots", flag.ContinueOnError)
	fs.Usage = func() { printSpotsHelp(fs.Output()) }
	fs.StringVar(&o.beamModel, "b", "", "Beam model CSV file")
	fs.StringVar(&o.beamModel, "beam-model", "", "Beam model CSV file")
	fs.IntVar(&o.field, "field", 0, "Field to export, counting from 1 (0: all fields)")
	fs.BoolVar(&o.diag, "diag", false, "Print plan diagnostics and exit")
	fs.BoolVar(&o.nominal, "nominal", false, "Use nominal instead of measured energies")
	fs.Float64Var(&o.scale, "scale", 1.0, "Multiply particle numbers by this factor")
	columns := fs.String("columns", "7", "sobp.dat layout: 5, 6 or 7 columns")
	fs.BoolVar(&o.flip, "flip", false, "Swap X and Y")
	fs.BoolVar(&o.flipX, "xflip", false, "Mirror X")
	fs.BoolVar(&o.flipY, "yflip", false, "Mirror Y")
	fs.BoolVar(&o.topas, "topas", false, "Write TOPAS parameter files instead of sobp.dat")
	fs.Float64Var(&o.nstat, "nstat", export.DefaultTopasOptions().NStat, "Histories per field for TOPAS")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	fs.BoolVar(&o.quiet, "quiet", false, "Suppress progress output")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if o.columns, err = export.ParseColumns(*columns); err != nil {
		return err
	}
	switch len(positional) {
	case 1:
		o.input = positional[0]
	case 2:
		o.input, o.output = positional[0], positional[1]
	default:
		printSpotsHelp(os.Stderr)
		return errors.New("expected an input plan and an optional output file")
	}
	if o.output == "" {
		o.output = "sobp.dat"
		if o.topas {
			o.output = "topas.txt"
		}
	}
	return exportSpots(o, os.Stdout)
}

func exportSpots(o spotsOptions, out io.Writer) error {
	printf := func(format string, args ...any) {
		if !o.quiet {
			fmt.Fprintf(out, format, args...)
		}
	}

	p, err := spotlist.Load(o.input, o.scale)
	if err != nil {
		return err
	}
	var bm *beammodel.Model
	if o.beamModel != "" {
		if bm, err = beammodel.FromCSV(o.beamModel, o.nominal); err != nil {
			return err
		}
		p.BeamModel = bm
	}
	if err := particles.Convert(p, bm); err != nil {
		return fmt.Errorf("convert %s: %w", o.input, err)
	}

	if o.metricsFile != "" {
		c, err := metrics.NewCollector(nil)
		if err != nil {
			return err
		}
		c.Fields.Set(float64(len(p.Fields)))
		for _, f := range p.Fields {
			c.ObserveParticles(f.Number, f.Aggregates.CumParticles)
		}
		if err := c.WriteTextfile(o.metricsFile); err != nil {
			return err
		}
	}

	if o.diag {
		printDiagnostics(out, p)
		return nil
	}

	var files []string
	if o.topas {
		opts := export.DefaultTopasOptions()
		opts.Nominal = o.nominal
		opts.NStat = o.nstat
		opts.Version = version
		opts.User = os.Getenv("USER")
		files, err = export.Topas(o.output, p, o.field, bm, opts, time.Now())
	} else {
		files, err = export.Sobp(o.output, p, o.field, export.SobpOptions{
			Columns: o.columns,
			Nominal: o.nominal,
			FlipXY:  o.flip,
			FlipX:   o.flipX,
			FlipY:   o.flipY,
		})
	}
	if err != nil {
		return err
	}
	for _, f := range files {
		printf("✓ Spot list written to: %s\n", f)
	}
	return nil
}

func printDiagnostics(w io.Writer, p *plan.Plan) {
	fmt.Fprintf(w, "Patient: %s (ID: %s), plan %s\n", p.Metadata.PatientName, p.Metadata.PatientID, p.Metadata.PlanLabel)
	if bm := p.BeamModel; bm != nil {
		lo, hi := bm.Range()
		fmt.Fprintf(w, "Beam model: %.1f-%.1f MeV, divergence: %t\n", lo, hi, bm.HasDivergence())
	}
	fmt.Fprintf(w, "Fields: %d, spots: %s, MU: %.2f, particles: %s\n",
		len(p.Fields), util.FormatCount(p.TotalSpots()), p.Aggregates.CumMU, util.FormatParticles(p.Aggregates.CumParticles))
	for _, f := range p.Fields {
		a := f.Aggregates
		fmt.Fprintf(w, "\nField %d %s: %d layers, MU %.2f, particles %s\n",
			f.Number, f.Name, len(f.Layers), a.CumMU, util.FormatParticles(a.CumParticles))
		fmt.Fprintf(w, "  X [%.2f, %.2f] mm  Y [%.2f, %.2f] mm\n", a.XMin, a.XMax, a.YMin, a.YMax)
		for i, l := range f.Layers {
			fmt.Fprintf(w, "  layer %3d  %7.2f MeV (measured %7.2f)  spots %4d  MU %8.3f  particles/MU %s\n",
				i+1, l.NominalEnergy, l.MeasuredEnergy, len(l.Spots), l.Aggregates.CumMU, util.FormatParticles(l.MUToParticles))
		}
	}
}

func printSpotsHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: dicomfix spots [options] <plan.dcm|plan.pld> [output]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert spot MU to particle numbers and write sobp.dat or TOPAS files.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -b, --beam-model <CSV>  Beam model (6 or 10 columns)")
	fmt.Fprintln(w, "  --field <N>             Field to export, 0 writes every field to <output>_NN")
	fmt.Fprintln(w, "  --columns <5|6|7>       sobp.dat layout (default: 7)")
	fmt.Fprintln(w, "  --nominal               Use nominal energies")
	fmt.Fprintln(w, "  --scale <K>             Multiply particle numbers by K")
	fmt.Fprintln(w, "  --flip, --xflip, --yflip")
	fmt.Fprintln(w, "                          Swap or mirror spot coordinates")
	fmt.Fprintln(w, "  --topas                 Write TOPAS files, needs a 10 column beam model")
	fmt.Fprintln(w, "  --nstat <N>             Histories per TOPAS field (default: 1e6)")
	fmt.Fprintln(w, "  --diag                  Print diagnostics and exit")
	fmt.Fprintln(w, "  --metrics-file <FILE>   Write particle totals as Prometheus metrics")
	fmt.Fprintln(w, "  --quiet                 Suppress progress output")
}
