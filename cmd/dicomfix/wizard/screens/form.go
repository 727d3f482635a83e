package screens

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/components"
)

// FormScreen is a wizard step made of one huh form and the help panel.
type FormScreen struct {
	title     string
	step      string
	form      *huh.Form
	helpPanel *components.HelpPanel
	sync      func() // copies form-only values back to the job
	first     bool
	width     int
	height    int
	done      bool
	back      bool
	cancelled bool
}

func newFormScreen(title, step string, form *huh.Form, sync func()) *FormScreen {
	return &FormScreen{
		title:     title,
		step:      step,
		form:      form.WithShowHelp(false).WithShowErrors(true),
		helpPanel: components.NewHelpPanel(),
		sync:      sync,
	}
}

// Init implements tea.Model
func (s *FormScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *FormScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			s.cancelled = true
			return s, tea.Quit
		case "esc":
			if s.first {
				s.cancelled = true
				return s, tea.Quit
			}
			s.back = true
			return s, nil
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.helpPanel.SetWidth(msg.Width / 2)
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}
	if focused := s.form.GetFocusedField(); focused != nil {
		s.helpPanel.SetField(focused.GetKey())
	}
	if s.form.State == huh.StateCompleted {
		s.done = true
		if s.sync != nil {
			s.sync()
		}
	}
	return s, cmd
}

// View implements tea.Model
func (s *FormScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}
	hint := "Tab: Next field | Enter: Submit | Esc: Back"
	if s.first {
		hint = "Tab: Next field | Enter: Submit | Esc: Cancel"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		components.TitleStyle.Render("DICOMFIX WIZARD - "+s.title),
		components.SubtitleStyle.Render(s.step),
		s.form.View(),
		"",
		s.helpPanel.View(),
		"",
		components.KeyHintStyle.Render(hint),
	)
}

// Done returns true once the form was submitted.
func (s *FormScreen) Done() bool { return s.done }

// Back returns true when the user asked for the previous step.
func (s *FormScreen) Back() bool { return s.back }

// Cancelled returns true if the user cancelled.
func (s *FormScreen) Cancelled() bool { return s.cancelled }

func validateRequired(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

// validateOptionalFloat accepts an empty string or a number.
func validateOptionalFloat(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}

func validatePositiveFloat(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if v <= 0 {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

// validateOptionalCount accepts an empty string or an integer >= 1.
func validateOptionalCount(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

// validateNumberList accepts an empty string or n comma separated numbers,
// any n when n is 0.
func validateNumberList(n int) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		parts := strings.Split(s, ",")
		if n > 0 && len(parts) != n {
			return fmt.Errorf("needs %d values, got %d", n, len(parts))
		}
		for _, p := range parts {
			if _, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err != nil {
				return fmt.Errorf("invalid number %q", strings.TrimSpace(p))
			}
		}
		return nil
	}
}
