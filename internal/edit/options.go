// Package edit runs the plan edit pipeline: read a plan, apply the requested
// edits in a fixed order, report and write the result.
package edit

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mrsinham/dicomfix/internal/plan"
	"github.com/mrsinham/dicomfix/internal/rescale"
	"github.com/mrsinham/dicomfix/internal/transform"
	"github.com/mrsinham/dicomfix/internal/util"
)

// DefaultOutput is written when no output path is given.
const DefaultOutput = "output.dcm"

// Options is an edit job. It is filled from command line flags or loaded
// from a YAML job file; both produce the same structure.
type Options struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output,omitempty"`

	// Rescaling
	Weights         string  `yaml:"weights,omitempty"` // per-layer factor file
	RescaleDose     float64 `yaml:"rescale_dose,omitempty"`
	RescaleFactor   float64 `yaml:"rescale_factor,omitempty"`
	RescaleMinimize bool    `yaml:"rescale_minimize,omitempty"`
	MinMU           float64 `yaml:"min_mu"`

	// Structure and geometry
	DuplicateFields int       `yaml:"duplicate_fields,omitempty"`
	GantryAngles    []float64 `yaml:"gantry_angles,omitempty,flow"`
	TablePosition   string    `yaml:"table_position,omitempty"` // "vertical,longitudinal,lateral" in cm
	SnoutPosition   float64   `yaml:"snout_position,omitempty"` // cm
	RangeShifter    string    `yaml:"range_shifter,omitempty"`  // RS_2CM, RS_5CM or none
	Repaint         int       `yaml:"repaint,omitempty"`

	// Metadata
	TreatmentMachine string            `yaml:"treatment_machine,omitempty"`
	PlanLabel        string            `yaml:"plan_label,omitempty"`
	PatientName      string            `yaml:"patient_name,omitempty"`
	ReviewerName     string            `yaml:"reviewer_name,omitempty"`
	Approve          bool              `yaml:"approve,omitempty"`
	Date             bool              `yaml:"date,omitempty"`
	IntentCurative   bool              `yaml:"intent_curative,omitempty"`
	Intent           string            `yaml:"intent,omitempty"`
	Tags             map[string]string `yaml:"tags,omitempty"`
	WizardTR4        bool              `yaml:"wizard_tr4,omitempty"`
	FixRayStation    bool              `yaml:"fix_raystation,omitempty"`

	// Reports and side outputs
	PrintSpots      int    `yaml:"print_spots,omitempty"`
	Inspect         bool   `yaml:"inspect,omitempty"`
	ExportRacehorse string `yaml:"export_racehorse,omitempty"`
	SpotMap         string `yaml:"spot_map,omitempty"`
	AuditDB         string `yaml:"audit_db,omitempty"`
	MetricsFile     string `yaml:"metrics_file,omitempty"`

	Quiet bool `yaml:"-"`
}

// DefaultOptions returns a job that only copies the plan.
func DefaultOptions() Options {
	return Options{MinMU: plan.DefaultMinMU}
}

// resolved holds the parsed form of the string and list options.
type resolved struct {
	mode    rescale.Mode
	rescale bool
	table   *util.TablePosition
	shifter *transform.RangeShifterID
	intent  *util.PlanIntent
	tags    []tagValue
}

type tagValue struct {
	info  util.TagInfo
	value string
}

// resolve validates o and parses every option that can fail. Nothing is
// read or written except the weights file.
func (o Options) resolve() (*resolved, error) {
	if o.Input == "" {
		return nil, errors.New("input plan is required")
	}
	if err := (plan.AdmissionPolicy{MinMU: o.MinMU}).Validate(); err != nil {
		return nil, err
	}
	if o.DuplicateFields < 0 {
		return nil, fmt.Errorf("duplicate fields must be >= 1, got %d", o.DuplicateFields)
	}
	if o.Repaint < 0 {
		return nil, fmt.Errorf("repaint count must be >= 1, got %d", o.Repaint)
	}
	if o.PrintSpots < 0 {
		return nil, fmt.Errorf("print spots must be >= 0, got %d", o.PrintSpots)
	}

	r := &resolved{}

	var layerFactors []float64
	if o.Weights != "" {
		w, err := rescale.ReadWeightsFile(o.Weights)
		if err != nil {
			return nil, err
		}
		layerFactors = w
	}
	mode, ok, err := rescale.ResolveMode(o.RescaleFactor, o.RescaleDose, o.RescaleMinimize, layerFactors)
	if err != nil {
		return nil, err
	}
	r.mode, r.rescale = mode, ok

	if o.TablePosition != "" {
		tp, err := util.ParseTablePosition(o.TablePosition)
		if err != nil {
			return nil, err
		}
		r.table = &tp
	}
	if o.RangeShifter != "" {
		id, err := transform.ParseRangeShifterID(o.RangeShifter)
		if err != nil {
			return nil, err
		}
		r.shifter = &id
	}

	switch {
	case o.IntentCurative && o.Intent != "":
		return nil, errors.New("give either intent curative or an intent, not both")
	case o.IntentCurative:
		in := util.IntentCurative
		r.intent = &in
	case o.Intent != "":
		in, err := util.ParsePlanIntent(o.Intent)
		if err != nil {
			return nil, err
		}
		r.intent = &in
	}

	names := make([]string, 0, len(o.Tags))
	for name := range o.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		info, err := util.GetTagByName(name)
		if err != nil {
			return nil, err
		}
		r.tags = append(r.tags, tagValue{info: info, value: o.Tags[name]})
	}
	return r, nil
}

// Validate checks o without reading the plan.
func (o Options) Validate() error {
	_, err := o.resolve()
	return err
}

// edits reports whether o asks for any change to the plan.
func (o Options) edits() bool {
	return o.Weights != "" || o.RescaleDose != 0 || o.RescaleFactor != 0 || o.RescaleMinimize ||
		o.DuplicateFields > 1 || len(o.GantryAngles) > 0 || o.TablePosition != "" || o.SnoutPosition != 0 ||
		o.RangeShifter != "" || o.Repaint > 1 ||
		o.TreatmentMachine != "" || o.PlanLabel != "" || o.PatientName != "" || o.ReviewerName != "" ||
		o.Approve || o.Date || o.IntentCurative || o.Intent != "" || len(o.Tags) > 0 ||
		o.WizardTR4 || o.FixRayStation
}

// LoadOptions reads a YAML job file. Keys missing from the file keep their
// DefaultOptions value.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read job file: %w", err)
	}
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse job file %s: %w", path, err)
	}
	return opts, nil
}

// SaveOptions writes o as a YAML job file.
func SaveOptions(o Options, path string) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write job file: %w", err)
	}
	return nil
}
