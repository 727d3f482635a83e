package main

import (
	"errors"
	"flag"

	"github.com/mrsinham/dicomfix/internal/dicom/synth"
)

func runSynth(args []string) error {
	opts := synth.DefaultOptions()
	fs := flag.NewFlagSet("dicomfix synth", flag.ContinueOnError)
	fs.StringVar(&opts.OutputPath, "output", "synthetic.dcm", "Output plan")
	fs.Int64Var(&opts.Seed, "seed", 0, "Seed for reproducibility (derived from --output if not specified)")
	fs.IntVar(&opts.Fields, "fields", opts.Fields, "Number of fields")
	fs.IntVar(&opts.Layers, "layers", opts.Layers, "Energy layers per field")
	fs.IntVar(&opts.SpotsPerLayer, "spots", opts.SpotsPerLayer, "Spots per energy layer")
	fs.Float64Var(&opts.BeamDose, "dose", opts.BeamDose, "Beam dose per field [Gy]")
	fs.Float64Var(&opts.BeamMeterset, "meterset", opts.BeamMeterset, "Beam meterset per field [MU]")
	fs.StringVar(&opts.Machine, "machine", opts.Machine, "Treatment machine name")
	fs.BoolVar(&opts.RangeShifter, "range-shifter", false, "Insert a RS_5CM range shifter")
	fs.Float64Var(&opts.LowWeightShare, "low-weight", opts.LowWeightShare, "Share of spots below 1 MU (0-1)")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Suppress progress output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return errors.New("synth takes no positional arguments, use --output")
	}
	_, err := synth.Generate(opts)
	return err
}
