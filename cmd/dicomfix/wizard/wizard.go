// Package wizard provides an interactive TUI for building an edit job.
package wizard

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/components"
	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/screens"
	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/types"
	"github.com/mrsinham/dicomfix/internal/edit"
)

// Phase represents the current phase/screen of the wizard.
type Phase int

const (
	PhasePlan Phase = iota
	PhaseGeometry
	PhaseMetadata
	PhaseSummary
	PhaseSaveConfig
	PhaseError
)

// Wizard is the main orchestrator for the wizard interface.
type Wizard struct {
	job   *types.Job
	phase Phase

	planScreen     *screens.FormScreen
	geometryScreen *screens.FormScreen
	metadataScreen *screens.FormScreen
	summaryScreen  *screens.SummaryScreen
	errorScreen    *screens.ErrorScreen

	// Save config form
	saveConfigForm *huh.Form
	configPath     string
	status         string

	width  int
	height int

	// Final state
	cancelled bool
	run       bool
	options   edit.Options
}

// NewWizard creates a new wizard editing job, or an empty job when nil.
func NewWizard(job *types.Job) *Wizard {
	if job == nil {
		job = FromOptions(edit.DefaultOptions())
	}
	w := &Wizard{job: job, phase: PhasePlan}
	w.planScreen = screens.NewPlanScreen(&w.job.Plan)
	return w
}

// Init implements tea.Model.
func (w *Wizard) Init() tea.Cmd {
	return w.planScreen.Init()
}

// Update implements tea.Model.
func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		w.width = wsm.Width
		w.height = wsm.Height
	}

	switch w.phase {
	case PhasePlan:
		return w.updateStep(w.planScreen, msg, nil, w.transitionToGeometry)
	case PhaseGeometry:
		return w.updateStep(w.geometryScreen, msg, w.transitionToPlan, w.transitionToMetadata)
	case PhaseMetadata:
		return w.updateStep(w.metadataScreen, msg, w.transitionToGeometry, w.transitionToSummary)
	case PhaseSummary:
		return w.updateSummary(msg)
	case PhaseSaveConfig:
		return w.updateSaveConfig(msg)
	case PhaseError:
		return w.updateError(msg)
	}
	return w, nil
}

// View implements tea.Model.
func (w *Wizard) View() string {
	switch w.phase {
	case PhasePlan:
		return w.planScreen.View()
	case PhaseGeometry:
		return w.geometryScreen.View()
	case PhaseMetadata:
		return w.metadataScreen.View()
	case PhaseSummary:
		return w.summaryScreen.View()
	case PhaseSaveConfig:
		return w.viewSaveConfig()
	case PhaseError:
		return w.errorScreen.View()
	}
	return ""
}

// updateStep forwards msg to one of the form steps and moves back or
// forward once the step is left.
func (w *Wizard) updateStep(s *screens.FormScreen, msg tea.Msg, prev, next func() (tea.Model, tea.Cmd)) (tea.Model, tea.Cmd) {
	_, cmd := s.Update(msg)
	switch {
	case s.Cancelled():
		w.cancelled = true
		return w, tea.Quit
	case s.Back() && prev != nil:
		return prev()
	case s.Done():
		return next()
	}
	return w, cmd
}

func (w *Wizard) transitionToPlan() (tea.Model, tea.Cmd) {
	w.phase = PhasePlan
	w.planScreen = screens.NewPlanScreen(&w.job.Plan)
	return w, w.planScreen.Init()
}

func (w *Wizard) transitionToGeometry() (tea.Model, tea.Cmd) {
	w.phase = PhaseGeometry
	w.geometryScreen = screens.NewGeometryScreen(&w.job.Geometry)
	return w, w.geometryScreen.Init()
}

func (w *Wizard) transitionToMetadata() (tea.Model, tea.Cmd) {
	w.phase = PhaseMetadata
	w.metadataScreen = screens.NewMetadataScreen(&w.job.Metadata)
	return w, w.metadataScreen.Init()
}

// transitionToSummary converts the job and shows the summary.
func (w *Wizard) transitionToSummary() (tea.Model, tea.Cmd) {
	w.phase = PhaseSummary
	opts, err := w.jobOptions()
	command := ""
	if err == nil {
		command = CommandLine(opts)
	}
	w.summaryScreen = screens.NewSummaryScreen(w.job, command, err, w.status)
	w.status = ""
	return w, w.summaryScreen.Init()
}

func (w *Wizard) jobOptions() (edit.Options, error) {
	opts, err := ToOptions(w.job)
	if err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

// updateSummary handles updates in the summary phase.
func (w *Wizard) updateSummary(msg tea.Msg) (tea.Model, tea.Cmd) {
	_, cmd := w.summaryScreen.Update(msg)

	if w.summaryScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}
	if !w.summaryScreen.Done() {
		return w, cmd
	}

	switch w.summaryScreen.Action() {
	case screens.SummaryActionRun:
		opts, err := w.jobOptions()
		if err != nil {
			return w.transitionToError(err)
		}
		w.options = opts
		w.run = true
		return w, tea.Quit
	case screens.SummaryActionSaveConfig:
		return w.transitionToSaveConfig()
	case screens.SummaryActionCancel:
		w.cancelled = true
		return w, tea.Quit
	default:
		return w.transitionToMetadata()
	}
}

// transitionToSaveConfig shows the save config dialog.
func (w *Wizard) transitionToSaveConfig() (tea.Model, tea.Cmd) {
	w.phase = PhaseSaveConfig
	w.configPath = "dicomfix-job.yaml"

	w.saveConfigForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("config_path").
				Title("Save job to").
				Description("Enter the path for the YAML job file").
				Value(&w.configPath).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("path is required")
					}
					return nil
				}),
		),
	).WithShowHelp(false)

	return w, w.saveConfigForm.Init()
}

// updateSaveConfig handles updates in the save config phase.
func (w *Wizard) updateSaveConfig(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return w.transitionToSummary()
		case "ctrl+c":
			w.cancelled = true
			return w, tea.Quit
		}
	}

	form, cmd := w.saveConfigForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		w.saveConfigForm = f
	}

	if w.saveConfigForm.State == huh.StateCompleted {
		if err := SaveJob(w.job, w.configPath); err != nil {
			return w.transitionToError(err)
		}
		w.status = fmt.Sprintf("✓ Job saved to %s", w.configPath)
		return w.transitionToSummary()
	}

	return w, cmd
}

func (w *Wizard) viewSaveConfig() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		components.TitleStyle.Render("SAVE JOB"),
		w.saveConfigForm.View(),
		"",
		components.KeyHintStyle.Render("Enter: Save | Esc: Back"),
	)
}

func (w *Wizard) transitionToError(err error) (tea.Model, tea.Cmd) {
	w.phase = PhaseError
	w.errorScreen = screens.NewErrorScreen(err)
	return w, nil
}

func (w *Wizard) updateError(msg tea.Msg) (tea.Model, tea.Cmd) {
	w.errorScreen.Update(msg)
	if w.errorScreen.Done() {
		return w.transitionToSummary()
	}
	return w, nil
}

// SaveJob writes the job as a YAML job file readable by --config and
// --from.
func SaveJob(j *types.Job, path string) error {
	opts, err := ToOptions(j)
	if err != nil {
		return err
	}
	return edit.SaveOptions(opts, path)
}

// LoadJob reads a YAML job file into wizard state.
func LoadJob(path string) (*types.Job, error) {
	opts, err := edit.LoadOptions(path)
	if err != nil {
		return nil, err
	}
	return FromOptions(opts), nil
}

// Run starts the wizard, optionally from a job file. It returns the job
// and true when the user chose to run it.
func Run(fromConfig string) (edit.Options, bool, error) {
	var job *types.Job
	if fromConfig != "" {
		absPath, err := filepath.Abs(fromConfig)
		if err != nil {
			return edit.Options{}, false, fmt.Errorf("resolving job path: %w", err)
		}
		if job, err = LoadJob(absPath); err != nil {
			return edit.Options{}, false, fmt.Errorf("loading job: %w", err)
		}
	}

	wizard := NewWizard(job)
	p := tea.NewProgram(wizard, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return edit.Options{}, false, fmt.Errorf("running wizard: %w", err)
	}

	w, ok := finalModel.(*Wizard)
	if !ok || w.cancelled || !w.run {
		return edit.Options{}, false, nil
	}
	return w.options, true, nil
}
