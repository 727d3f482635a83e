package wizard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/types"
	"github.com/mrsinham/dicomfix/internal/edit"
	"github.com/mrsinham/dicomfix/internal/util"
)

// ToOptions converts the wizard state into an edit job.
func ToOptions(j *types.Job) (edit.Options, error) {
	opts := edit.DefaultOptions()
	opts.Input = strings.TrimSpace(j.Plan.Input)
	opts.Output = strings.TrimSpace(j.Plan.Output)
	opts.Inspect = j.Plan.Inspect
	opts.SpotMap = j.Plan.SpotMapDir
	opts.Tags = j.Tags
	opts.PrintSpots = j.PrintSpots
	opts.ExportRacehorse = j.ExportRacehorse
	opts.AuditDB = j.AuditDB
	opts.MetricsFile = j.MetricsFile

	var err error
	if j.Plan.MinMU != "" {
		if opts.MinMU, err = parseFloat("minimum MU", j.Plan.MinMU); err != nil {
			return opts, err
		}
	}

	switch j.Plan.RescaleMode {
	case "", types.RescaleNone:
	case types.RescaleFactor:
		if opts.RescaleFactor, err = parseFloat("rescale factor", j.Plan.RescaleValue); err != nil {
			return opts, err
		}
	case types.RescaleDose:
		if opts.RescaleDose, err = parseFloat("rescale dose", j.Plan.RescaleValue); err != nil {
			return opts, err
		}
	case types.RescaleMinimize:
		opts.RescaleMinimize = true
	case types.RescaleWeights:
		if j.Plan.WeightsFile == "" {
			return opts, fmt.Errorf("weights file is required for per-layer rescaling")
		}
		opts.Weights = j.Plan.WeightsFile
	default:
		return opts, fmt.Errorf("unknown rescale mode %q", j.Plan.RescaleMode)
	}

	g := j.Geometry
	if opts.DuplicateFields, err = parseInt("duplicate fields", g.DuplicateFields); err != nil {
		return opts, err
	}
	if opts.Repaint, err = parseInt("repaint", g.Repaint); err != nil {
		return opts, err
	}
	if strings.TrimSpace(g.GantryAngles) != "" {
		if opts.GantryAngles, err = util.ParseFloatList(g.GantryAngles); err != nil {
			return opts, fmt.Errorf("gantry angles: %w", err)
		}
	}
	if g.SnoutPosition != "" {
		if opts.SnoutPosition, err = parseFloat("snout position", g.SnoutPosition); err != nil {
			return opts, err
		}
	}
	opts.TablePosition = strings.TrimSpace(g.TablePosition)
	opts.RangeShifter = g.RangeShifter

	m := j.Metadata
	opts.TreatmentMachine = m.TreatmentMachine
	opts.PlanLabel = m.PlanLabel
	opts.PatientName = m.PatientName
	opts.ReviewerName = m.ReviewerName
	opts.Intent = m.Intent
	opts.Approve = m.Approve
	opts.Date = m.Date
	opts.WizardTR4 = m.WizardTR4
	opts.FixRayStation = m.FixRayStation
	return opts, nil
}

// FromOptions builds the wizard state from an edit job, e.g. one loaded
// with --from.
func FromOptions(o edit.Options) *types.Job {
	j := &types.Job{
		Plan: types.PlanConfig{
			Input:       o.Input,
			Output:      o.Output,
			RescaleMode: types.RescaleNone,
			MinMU:       formatFloat(o.MinMU),
			Inspect:     o.Inspect,
			SpotMapDir:  o.SpotMap,
		},
		Geometry: types.GeometryConfig{
			TablePosition: o.TablePosition,
			RangeShifter:  o.RangeShifter,
		},
		Metadata: types.MetadataConfig{
			TreatmentMachine: o.TreatmentMachine,
			PlanLabel:        o.PlanLabel,
			PatientName:      o.PatientName,
			ReviewerName:     o.ReviewerName,
			Intent:           o.Intent,
			Approve:          o.Approve,
			Date:             o.Date,
			WizardTR4:        o.WizardTR4,
			FixRayStation:    o.FixRayStation,
		},
		Tags:            o.Tags,
		PrintSpots:      o.PrintSpots,
		ExportRacehorse: o.ExportRacehorse,
		AuditDB:         o.AuditDB,
		MetricsFile:     o.MetricsFile,
	}
	if o.IntentCurative {
		j.Metadata.Intent = util.IntentCurative.String()
	}

	switch {
	case o.Weights != "":
		j.Plan.RescaleMode = types.RescaleWeights
		j.Plan.WeightsFile = o.Weights
	case o.RescaleMinimize:
		j.Plan.RescaleMode = types.RescaleMinimize
	case o.RescaleDose != 0:
		j.Plan.RescaleMode = types.RescaleDose
		j.Plan.RescaleValue = formatFloat(o.RescaleDose)
	case o.RescaleFactor != 0:
		j.Plan.RescaleMode = types.RescaleFactor
		j.Plan.RescaleValue = formatFloat(o.RescaleFactor)
	}

	if o.DuplicateFields > 0 {
		j.Geometry.DuplicateFields = strconv.Itoa(o.DuplicateFields)
	}
	if o.Repaint > 0 {
		j.Geometry.Repaint = strconv.Itoa(o.Repaint)
	}
	if o.SnoutPosition != 0 {
		j.Geometry.SnoutPosition = formatFloat(o.SnoutPosition)
	}
	if len(o.GantryAngles) > 0 {
		angles := make([]string, len(o.GantryAngles))
		for i, a := range o.GantryAngles {
			angles[i] = formatFloat(a)
		}
		j.Geometry.GantryAngles = strings.Join(angles, ",")
	}
	return j
}

// CommandLine renders o as the equivalent dicomfix invocation.
func CommandLine(o edit.Options) string {
	args := []string{"dicomfix", shellQuote(o.Input)}
	str := func(flag, v string) {
		if v != "" {
			args = append(args, flag, shellQuote(v))
		}
	}
	num := func(flag string, v float64) {
		if v != 0 {
			args = append(args, flag, formatFloat(v))
		}
	}
	count := func(flag string, n int) {
		if n > 1 {
			args = append(args, flag, strconv.Itoa(n))
		}
	}
	boolean := func(flag string, on bool) {
		if on {
			args = append(args, flag)
		}
	}

	str("--output", o.Output)
	str("--weights", o.Weights)
	num("--rescale-factor", o.RescaleFactor)
	num("--rescale-dose", o.RescaleDose)
	boolean("--rescale-minimize", o.RescaleMinimize)
	if o.MinMU != edit.DefaultOptions().MinMU {
		num("--min-mu", o.MinMU)
	}
	count("--duplicate-fields", o.DuplicateFields)
	if len(o.GantryAngles) > 0 {
		angles := make([]string, len(o.GantryAngles))
		for i, a := range o.GantryAngles {
			angles[i] = formatFloat(a)
		}
		args = append(args, "--gantry-angles", strings.Join(angles, ","))
	}
	str("--table-position", o.TablePosition)
	num("--snout-position", o.SnoutPosition)
	str("--range-shifter", o.RangeShifter)
	count("--repaint", o.Repaint)
	str("--treatment-machine", o.TreatmentMachine)
	str("--plan-label", o.PlanLabel)
	str("--patient-name", o.PatientName)
	str("--reviewer-name", o.ReviewerName)
	boolean("--approve", o.Approve)
	boolean("--date", o.Date)
	boolean("--intent-curative", o.IntentCurative)
	str("--intent", o.Intent)
	names := make([]string, 0, len(o.Tags))
	for name := range o.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--tag", shellQuote(name+"="+o.Tags[name]))
	}
	boolean("--wizard-tr4", o.WizardTR4)
	boolean("--fix-raystation", o.FixRayStation)
	if o.PrintSpots > 0 {
		args = append(args, "--print-spots", strconv.Itoa(o.PrintSpots))
	}
	boolean("--inspect", o.Inspect)
	str("--export-racehorse", o.ExportRacehorse)
	str("--spot-map", o.SpotMap)
	str("--audit-db", o.AuditDB)
	str("--metrics-file", o.MetricsFile)
	return strings.Join(args, " ")
}

// shellQuote single-quotes s when it holds characters a shell would split
// or expand.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t'\"$`\\*?&;|<>()^") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, s)
	}
	return v, nil
}

func parseInt(name, s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, s)
	}
	return n, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
