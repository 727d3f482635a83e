package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard"
	"github.com/mrsinham/dicomfix/internal/edit"
	"github.com/mrsinham/dicomfix/internal/logging"
	"github.com/mrsinham/dicomfix/internal/util"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "wizard":
			// Extract --from flag if present
			var fromConfig string
			for i, arg := range os.Args[2:] {
				if arg == "--from" && i+3 < len(os.Args) {
					fromConfig = os.Args[i+3]
				}
			}
			runWizard(fromConfig)
			os.Exit(0)
		case "spots":
			exitOnError(runSpots(os.Args[2:]))
			os.Exit(0)
		case "synth":
			exitOnError(runSynth(os.Args[2:]))
			os.Exit(0)
		}
	}
	exitOnError(runEdit(os.Args[1:]))
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runEdit(args []string) error {
	// A job file provides the defaults, so it is loaded before the flags
	// are bound.
	opts := edit.DefaultOptions()
	if path := scanFlag(args, "config"); path != "" {
		loaded, err := edit.LoadOptions(path)
		if err != nil {
			return err
		}
		opts = loaded
	}

	fs := flag.NewFlagSet("dicomfix", flag.ContinueOnError)
	fs.Usage = printUsage

	// Rescaling
	fs.StringVar(&opts.Weights, "weights", opts.Weights, "File with one weight factor per energy layer")
	fs.Float64Var(&opts.RescaleDose, "rescale-dose", opts.RescaleDose, "Rescale every field to this beam dose [Gy]")
	fs.Float64Var(&opts.RescaleFactor, "rescale-factor", opts.RescaleFactor, "Multiply all spot weights by this factor")
	fs.BoolVar(&opts.RescaleMinimize, "rescale-minimize", opts.RescaleMinimize, "Scale so the smallest spot reaches the minimum MU")
	fs.Float64Var(&opts.MinMU, "min-mu", opts.MinMU, "Minimum deliverable MU per spot")

	// Structure and geometry
	fs.IntVar(&opts.DuplicateFields, "duplicate-fields", opts.DuplicateFields, "Repeat every field N times")
	fs.Func("gantry-angles", "Comma-separated gantry angles, one per field [deg]", func(s string) error {
		angles, err := util.ParseFloatList(s)
		if err != nil {
			return err
		}
		opts.GantryAngles = angles
		return nil
	})
	fs.StringVar(&opts.TablePosition, "table-position", opts.TablePosition, "Couch position 'vertical,longitudinal,lateral' [cm]")
	fs.Float64Var(&opts.SnoutPosition, "snout-position", opts.SnoutPosition, "Snout position [cm]")
	fs.StringVar(&opts.RangeShifter, "range-shifter", opts.RangeShifter, "Range shifter: RS_2CM, RS_5CM or none")
	fs.IntVar(&opts.Repaint, "repaint", opts.Repaint, "Split every spot over N paintings")

	// Metadata
	fs.StringVar(&opts.TreatmentMachine, "treatment-machine", opts.TreatmentMachine, "Treatment machine name")
	fs.StringVar(&opts.PlanLabel, "plan-label", opts.PlanLabel, "RT plan label")
	fs.StringVar(&opts.PatientName, "patient-name", opts.PatientName, "Patient name")
	fs.StringVar(&opts.ReviewerName, "reviewer-name", opts.ReviewerName, "Reviewer name")
	fs.BoolVar(&opts.Approve, "approve", opts.Approve, "Set the plan to APPROVED")
	fs.BoolVar(&opts.Date, "date", opts.Date, "Set plan and review dates to now")
	fs.BoolVar(&opts.IntentCurative, "intent-curative", opts.IntentCurative, "Set the plan intent to CURATIVE")
	fs.StringVar(&opts.Intent, "intent", opts.Intent, "Set the plan intent")
	fs.Func("tag", "Set DICOM tag: 'TagName=Value' (repeatable)", func(s string) error {
		info, value, err := util.ParseTagAssignment(s)
		if err != nil {
			return err
		}
		if opts.Tags == nil {
			opts.Tags = map[string]string{}
		}
		opts.Tags[info.Name] = value
		return nil
	})
	fs.BoolVar(&opts.WizardTR4, "wizard-tr4", opts.WizardTR4, "Prepare the plan for the TR4 research room")
	fs.BoolVar(&opts.FixRayStation, "fix-raystation", opts.FixRayStation, "Make a RayStation plan deliverable")

	// Reports and side outputs
	fs.IntVar(&opts.PrintSpots, "print-spots", opts.PrintSpots, "Print N random spots per energy layer")
	fs.BoolVar(&opts.Inspect, "inspect", opts.Inspect, "Print a plan overview")
	fs.StringVar(&opts.ExportRacehorse, "export-racehorse", opts.ExportRacehorse, "Write RACEHORSE spot lists with this base name")
	fs.StringVar(&opts.SpotMap, "spot-map", opts.SpotMap, "Write one spot map PNG per field to this directory")
	fs.StringVar(&opts.AuditDB, "audit-db", opts.AuditDB, "Record the run in this SQLite database")
	fs.StringVar(&opts.MetricsFile, "metrics-file", opts.MetricsFile, "Write Prometheus metrics to this textfile")
	fs.StringVar(&opts.Output, "output", opts.Output, "Output plan (default: "+edit.DefaultOutput+")")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Suppress progress output")

	fs.String("config", "", "Load the job from a YAML file")
	saveConfig := fs.String("save-config", "", "Save the job to a YAML file")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "Log format: text or json")
	help := fs.Bool("help", false, "Show help message")
	showVersion := fs.Bool("version", false, "Show version")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("dicomfix %s\n", version)
		return nil
	}
	if *help {
		printHelp()
		return nil
	}

	switch len(positional) {
	case 0:
	case 1:
		opts.Input = positional[0]
	default:
		return fmt.Errorf("expected one input plan, got %d: %s", len(positional), strings.Join(positional, " "))
	}
	if opts.Input == "" {
		printUsage()
		return errors.New("input plan is required")
	}

	if *saveConfig != "" {
		if err := edit.SaveOptions(opts, *saveConfig); err != nil {
			return err
		}
		if !opts.Quiet {
			fmt.Printf("✓ Job saved to: %s\n", *saveConfig)
		}
	}

	return execute(opts, logging.NewFromEnv(*logLevel, *logFormat))
}

func execute(opts edit.Options, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, log)

	session := &edit.Session{Options: opts, Log: log}
	_, err := session.Run(ctx)
	return err
}

func runWizard(fromConfig string) {
	opts, ok, err := wizard.Run(fromConfig)
	exitOnError(err)
	if !ok {
		return
	}
	exitOnError(execute(opts, logging.NewFromEnv("", "")))
}

// parseInterspersed parses flags placed before and after positional
// arguments and returns the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		if args[0] == "--" {
			return append(positional, args[1:]...), nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// scanFlag returns the value of a string flag without parsing the others.
func scanFlag(args []string, name string) string {
	for i, arg := range args {
		trimmed := strings.TrimLeft(arg, "-")
		if trimmed == arg {
			continue
		}
		if v, ok := strings.CutPrefix(trimmed, name+"="); ok {
			return v
		}
		if trimmed == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// tagNames lists the --tag keywords of one scope for the help text.
func tagNames(scope util.TagScope) string {
	var names []string
	for _, info := range util.RegisteredTags() {
		if info.Scope == scope {
			names = append(names, info.Name)
		}
	}
	return strings.Join(names, ", ")
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: dicomfix <plan.dcm> [options]")
	fmt.Fprintln(os.Stderr, "       dicomfix wizard [--from job.yaml]")
	fmt.Fprintln(os.Stderr, "       dicomfix spots [options] <plan.dcm|plan.pld> [sobp.dat]")
	fmt.Fprintln(os.Stderr, "       dicomfix synth [options]")
	fmt.Fprintln(os.Stderr, "Run 'dicomfix --help' for more information.")
}

func printHelp() {
	fmt.Println("dicomfix")
	fmt.Println("========")
	fmt.Println()
	fmt.Println("Rescale and edit proton therapy RT Ion Plans.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dicomfix <plan.dcm> [options]")
	fmt.Println()
	fmt.Println("Rescaling (at most one of the first four):")
	fmt.Println("  --weights <FILE>          One weight factor per energy layer")
	fmt.Println("  --rescale-factor <K>      Multiply all spot weights by K")
	fmt.Println("  --rescale-dose <GY>       Rescale every field to this beam dose")
	fmt.Println("  --rescale-minimize        Scale so the smallest spot reaches --min-mu")
	fmt.Println("  --min-mu <MU>             Minimum deliverable MU per spot (default: 1.0)")
	fmt.Println()
	fmt.Println("Structure and geometry:")
	fmt.Println("  --duplicate-fields <N>    Repeat every field N times")
	fmt.Println("  --gantry-angles <LIST>    Comma-separated angles, one per resulting field")
	fmt.Println("  --table-position <V,L,A>  Couch vertical,longitudinal,lateral in cm")
	fmt.Println("  --snout-position <CM>     Snout position in cm")
	fmt.Println("  --range-shifter <ID>      RS_2CM, RS_5CM or none")
	fmt.Println("  --repaint <N>             Split every spot over N paintings")
	fmt.Println()
	fmt.Println("Metadata:")
	fmt.Println("  --treatment-machine <NAME>")
	fmt.Println("  --plan-label <LABEL>")
	fmt.Println("  --patient-name <NAME>")
	fmt.Println("  --reviewer-name <NAME>")
	fmt.Println("  --approve                 Set approval status to APPROVED")
	fmt.Println("  --date                    Set plan and review dates to now")
	fmt.Println("  --intent-curative         Set plan intent to CURATIVE")
	fmt.Println("  --intent <INTENT>         CURATIVE, PALLIATIVE, PROPHYLACTIC, VERIFICATION,")
	fmt.Println("                            MACHINE_QA, RESEARCH or SERVICE")
	fmt.Println("  --tag <NAME=VALUE>        Set DICOM tag value (repeatable)")
	fmt.Println("                            Example: --tag \"InstitutionName=DCPT\"")
	for _, scope := range []util.TagScope{util.ScopePatient, util.ScopePlan, util.ScopeBeam} {
		fmt.Printf("                            %s: %s\n", scope, tagNames(scope))
	}
	fmt.Println("  --wizard-tr4              Approve, machine TR4, gantry 90, snout 42.1 cm")
	fmt.Println("  --fix-raystation          Make a RayStation export deliverable")
	fmt.Println()
	fmt.Println("Reports and outputs:")
	fmt.Println("  --output <FILE>           Output plan (default: 'output.dcm')")
	fmt.Println("  --inspect                 Print a plan overview")
	fmt.Println("  --print-spots <N>         Print N random spots per energy layer")
	fmt.Println("  --export-racehorse <BASE> Write RACEHORSE spot lists, one per layer")
	fmt.Println("  --spot-map <DIR>          Write one spot map PNG per field")
	fmt.Println("  --audit-db <FILE>         Record the run in a SQLite database")
	fmt.Println("  --metrics-file <FILE>     Write Prometheus metrics to a textfile")
	fmt.Println()
	fmt.Println("Jobs and logging:")
	fmt.Println("  --config <FILE>           Load the job from YAML, flags override it")
	fmt.Println("  --save-config <FILE>      Save the job to YAML before running it")
	fmt.Println("  --log-level <LEVEL>       debug, info, warn, error (env DICOMFIX_LOG_LEVEL)")
	fmt.Println("  --log-format <FORMAT>     text or json (env DICOMFIX_LOG_FORMAT)")
	fmt.Println("  --quiet                   Suppress progress output")
	fmt.Println("  --version                 Show version")
	fmt.Println("  --help                    Show this help message")
	fmt.Println()
	fmt.Println("Subcommands:")
	fmt.Println("  wizard [--from job.yaml]  Build a job interactively")
	fmt.Println("  spots                     Export particle spot lists (sobp.dat, TOPAS)")
	fmt.Println("  synth                     Write a synthetic RT Ion Plan")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Double all weights and drop spots below 1 MU")
	fmt.Println("  dicomfix plan.dcm --rescale-factor 2 --output doubled.dcm")
	fmt.Println()
	fmt.Println("  # Rescale to 2 Gy per field and duplicate fields at new angles")
	fmt.Println("  dicomfix plan.dcm --rescale-dose 2 --duplicate-fields 2 --gantry-angles 0,0,90,90")
	fmt.Println()
	fmt.Println("  # Inspect a plan without writing anything")
	fmt.Println("  dicomfix plan.dcm --inspect")
}
