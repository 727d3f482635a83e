package screens

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/components"
	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/types"
)

// SummaryAction represents the action selected on the summary screen
type SummaryAction int

const (
	// SummaryActionBack returns to the last step
	SummaryActionBack SummaryAction = iota
	// SummaryActionRun runs the edit job
	SummaryActionRun
	// SummaryActionSaveConfig saves the job to a YAML file
	SummaryActionSaveConfig
	// SummaryActionCancel exits the wizard
	SummaryActionCancel
)

const (
	actionBack       = "back"
	actionRun        = "run"
	actionSaveConfig = "save_config"
	actionCancel     = "cancel"
)

var (
	summaryPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("63")).
				Padding(1, 2)

	summaryTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63")).
				Bold(true).
				MarginBottom(1)

	summaryLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	summaryValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	summaryErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	summaryOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	cliCommandStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// SummaryScreen shows the job before it runs. command is the equivalent
// command line, or empty when the job does not convert.
type SummaryScreen struct {
	form      *huh.Form
	job       *types.Job
	command   string
	jobErr    error
	status    string
	action    string
	done      bool
	cancelled bool
}

// NewSummaryScreen creates the summary for job. status is shown under the
// panel, e.g. after a save.
func NewSummaryScreen(job *types.Job, command string, jobErr error, status string) *SummaryScreen {
	s := &SummaryScreen{
		job:     job,
		command: command,
		jobErr:  jobErr,
		status:  status,
		action:  actionRun,
	}

	options := []huh.Option[string]{
		huh.NewOption("Run edit", actionRun),
		huh.NewOption("Save job to YAML", actionSaveConfig),
		huh.NewOption("Back to edit", actionBack),
		huh.NewOption("Cancel and exit", actionCancel),
	}
	if jobErr != nil {
		s.action = actionBack
		options = options[2:]
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("action").
				Title("Select an action").
				Options(options...).
				Value(&s.action),
		),
	).WithShowHelp(false)

	return s
}

// Init implements tea.Model
func (s *SummaryScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *SummaryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c":
			s.cancelled = true
			return s, tea.Quit
		case "esc":
			s.action = actionBack
			s.done = true
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}
	if s.form.State == huh.StateCompleted {
		s.done = true
	}
	return s, cmd
}

// View implements tea.Model
func (s *SummaryScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	parts := []string{
		components.TitleStyle.Render("SUMMARY - Review Job"),
		summaryPanelStyle.Width(70).Render(s.buildParameterSummary()),
		"",
	}
	if s.jobErr != nil {
		parts = append(parts, summaryErrStyle.Render("✗ "+s.jobErr.Error()), "")
	} else {
		parts = append(parts,
			summaryLabelStyle.Render("Equivalent command:"),
			cliCommandStyle.Render(s.command),
			"")
	}
	if s.status != "" {
		parts = append(parts, summaryOKStyle.Render(s.status), "")
	}
	parts = append(parts, s.form.View(), "", components.KeyHintStyle.Render("Enter: Select action | Esc: Back"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (s *SummaryScreen) buildParameterSummary() string {
	var sb strings.Builder
	sb.WriteString(summaryTitleStyle.Render("Job Summary"))
	sb.WriteString("\n")

	j := s.job
	rescale := j.Plan.RescaleMode
	switch j.Plan.RescaleMode {
	case types.RescaleFactor:
		rescale = "factor " + j.Plan.RescaleValue
	case types.RescaleDose:
		rescale = fmt.Sprintf("dose %s Gy", j.Plan.RescaleValue)
	case types.RescaleWeights:
		rescale = "weights from " + j.Plan.WeightsFile
	}

	params := []struct {
		label string
		value string
	}{
		{"Input", j.Plan.Input},
		{"Output", orDefault(j.Plan.Output, "output.dcm")},
		{"Rescaling", rescale},
		{"Minimum MU", j.Plan.MinMU},
		{"Duplicate fields", orDefault(j.Geometry.DuplicateFields, "1")},
		{"Gantry angles", orDefault(j.Geometry.GantryAngles, "unchanged")},
		{"Table position", orDefault(j.Geometry.TablePosition, "unchanged")},
		{"Snout position", orDefault(j.Geometry.SnoutPosition, "unchanged")},
		{"Range shifter", orDefault(j.Geometry.RangeShifter, "unchanged")},
		{"Repaintings", orDefault(j.Geometry.Repaint, "1")},
		{"Machine", orDefault(j.Metadata.TreatmentMachine, "unchanged")},
		{"Plan intent", orDefault(j.Metadata.Intent, "unchanged")},
		{"Approve", yesNo(j.Metadata.Approve)},
	}
	for _, p := range params {
		sb.WriteString(summaryLabelStyle.Render(p.label + ": "))
		sb.WriteString(summaryValueStyle.Render(p.value))
		sb.WriteString("\n")
	}
	return sb.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Done returns true once an action was chosen.
func (s *SummaryScreen) Done() bool { return s.done }

// Cancelled returns true if the user cancelled.
func (s *SummaryScreen) Cancelled() bool { return s.cancelled }

// Action returns the chosen action.
func (s *SummaryScreen) Action() SummaryAction {
	switch s.action {
	case actionRun:
		return SummaryActionRun
	case actionSaveConfig:
		return SummaryActionSaveConfig
	case actionCancel:
		return SummaryActionCancel
	default:
		return SummaryActionBack
	}
}
