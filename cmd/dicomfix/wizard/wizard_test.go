package wizard

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/types"
	"github.com/mrsinham/dicomfix/internal/edit"
)

func TestToOptions_BasicConversion(t *testing.T) {
	job := &types.Job{
		Plan: types.PlanConfig{
			Input:        " plan.dcm ",
			Output:       "out.dcm",
			RescaleMode:  types.RescaleDose,
			RescaleValue: "2.5",
			MinMU:        "0.8",
			Inspect:      true,
			SpotMapDir:   "maps",
		},
		Geometry: types.GeometryConfig{
			DuplicateFields: "2",
			GantryAngles:    "0, 90,180,270",
			TablePosition:   "10,20,30",
			SnoutPosition:   "42.1",
			RangeShifter:    "RS_2CM",
			Repaint:         "3",
		},
		Metadata: types.MetadataConfig{
			TreatmentMachine: "TR4",
			PlanLabel:        "QA",
			Intent:           "RESEARCH",
			Approve:          true,
		},
		Tags: map[string]string{"InstitutionName": "DCPT"},
	}

	opts, err := ToOptions(job)
	if err != nil {
		t.Fatalf("ToOptions failed: %v", err)
	}
	if opts.Input != "plan.dcm" {
		t.Errorf("Expected input plan.dcm, got %q", opts.Input)
	}
	if opts.RescaleDose != 2.5 || opts.RescaleFactor != 0 {
		t.Errorf("Expected dose 2.5 and no factor, got %v and %v", opts.RescaleDose, opts.RescaleFactor)
	}
	if opts.MinMU != 0.8 {
		t.Errorf("Expected min MU 0.8, got %v", opts.MinMU)
	}
	if !reflect.DeepEqual(opts.GantryAngles, []float64{0, 90, 180, 270}) {
		t.Errorf("Unexpected gantry angles %v", opts.GantryAngles)
	}
	if opts.DuplicateFields != 2 || opts.Repaint != 3 || opts.SnoutPosition != 42.1 {
		t.Errorf("Unexpected geometry: %+v", opts)
	}
	if opts.TablePosition != "10,20,30" || opts.RangeShifter != "RS_2CM" {
		t.Errorf("Unexpected table %q or shifter %q", opts.TablePosition, opts.RangeShifter)
	}
	if !opts.Approve || opts.Intent != "RESEARCH" || opts.TreatmentMachine != "TR4" {
		t.Errorf("Unexpected metadata: %+v", opts)
	}
	if opts.Tags["InstitutionName"] != "DCPT" {
		t.Errorf("Tags not carried over: %v", opts.Tags)
	}
}

func TestToOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		edit func(j *types.Job)
	}{
		{"bad factor", func(j *types.Job) { j.Plan.RescaleMode, j.Plan.RescaleValue = types.RescaleFactor, "x" }},
		{"missing weights file", func(j *types.Job) { j.Plan.RescaleMode = types.RescaleWeights }},
		{"unknown mode", func(j *types.Job) { j.Plan.RescaleMode = "double" }},
		{"bad min MU", func(j *types.Job) { j.Plan.MinMU = "one" }},
		{"bad duplicates", func(j *types.Job) { j.Geometry.DuplicateFields = "two" }},
		{"bad angles", func(j *types.Job) { j.Geometry.GantryAngles = "0,east" }},
		{"bad snout", func(j *types.Job) { j.Geometry.SnoutPosition = "far" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := FromOptions(edit.Options{Input: "plan.dcm", MinMU: 1})
			tt.edit(job)
			if _, err := ToOptions(job); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestFromOptions_RoundTrip(t *testing.T) {
	tests := []edit.Options{
		{Input: "a.dcm", MinMU: 1, RescaleFactor: 2},
		{Input: "a.dcm", MinMU: 1, RescaleDose: 11},
		{Input: "a.dcm", MinMU: 0.5, RescaleMinimize: true},
		{Input: "a.dcm", MinMU: 1, Weights: "w.txt", DuplicateFields: 2, GantryAngles: []float64{0, 0, 90, 90}},
		{Input: "a.dcm", MinMU: 1, SnoutPosition: 42.1, Repaint: 2, RangeShifter: "none", WizardTR4: true},
	}
	for _, want := range tests {
		got, err := ToOptions(FromOptions(want))
		if err != nil {
			t.Fatalf("ToOptions(FromOptions(%+v)): %v", want, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Round trip changed the job:\n got  %+v\n want %+v", got, want)
		}
	}
}

func TestFromOptions_IntentCurative(t *testing.T) {
	job := FromOptions(edit.Options{Input: "a.dcm", IntentCurative: true})
	if job.Metadata.Intent != "CURATIVE" {
		t.Errorf("Expected CURATIVE intent, got %q", job.Metadata.Intent)
	}
}

func TestCommandLine(t *testing.T) {
	opts := edit.DefaultOptions()
	opts.Input = "my plan.dcm"
	opts.RescaleFactor = 2
	opts.DuplicateFields = 2
	opts.GantryAngles = []float64{0, 0, 90, 90}
	opts.Approve = true
	opts.Tags = map[string]string{"StationName": "TR1", "InstitutionName": "DCPT"}

	got := CommandLine(opts)
	want := "dicomfix 'my plan.dcm' --rescale-factor 2 --duplicate-fields 2 --gantry-angles 0,0,90,90 " +
		"--approve --tag InstitutionName=DCPT --tag StationName=TR1"
	if got != want {
		t.Errorf("CommandLine() =\n %s\nwant\n %s", got, want)
	}

	opts = edit.DefaultOptions()
	opts.Input = "p.dcm"
	opts.MinMU = 0.5
	if got := CommandLine(opts); !strings.HasSuffix(got, "--min-mu 0.5") {
		t.Errorf("Non default min MU missing: %s", got)
	}
}

func TestSaveAndLoadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	job := FromOptions(edit.Options{Input: "plan.dcm", MinMU: 1, RescaleDose: 2, Approve: true})
	if err := SaveJob(job, path); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	loaded, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, job) {
		t.Errorf("Loaded job differs:\n got  %+v\n want %+v", loaded, job)
	}

	if _, err := LoadJob(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing job file")
	}
}

func TestWizard_Navigation(t *testing.T) {
	w := NewWizard(nil)
	if w.phase != PhasePlan {
		t.Fatalf("Expected plan phase, got %d", w.phase)
	}

	w.transitionToGeometry()
	w.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if w.phase != PhasePlan {
		t.Errorf("Esc on geometry should go back to plan, phase %d", w.phase)
	}

	w.transitionToSaveConfig()
	w.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if w.phase != PhaseSummary {
		t.Errorf("Esc on save dialog should return to summary, phase %d", w.phase)
	}

	w.transitionToError(errors.New("boom"))
	w.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if w.phase != PhaseSummary {
		t.Errorf("Enter on error should return to summary, phase %d", w.phase)
	}

	w.transitionToPlan()
	w.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !w.cancelled {
		t.Error("Ctrl+C should cancel the wizard")
	}
}

func TestWizard_JobOptionsValidates(t *testing.T) {
	w := NewWizard(FromOptions(edit.Options{MinMU: 1}))
	if _, err := w.jobOptions(); err == nil {
		t.Error("Expected an error for a job without input")
	}

	w = NewWizard(FromOptions(edit.Options{Input: "plan.dcm", MinMU: 1, IntentCurative: true}))
	w.job.Plan.RescaleMode, w.job.Plan.RescaleValue = types.RescaleFactor, "2"
	opts, err := w.jobOptions()
	if err != nil {
		t.Fatalf("jobOptions failed: %v", err)
	}
	if opts.RescaleFactor != 2 || opts.Intent != "CURATIVE" {
		t.Errorf("Unexpected options %+v", opts)
	}
}
