package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/help"
)

var (
	helpPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	helpTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Bold(true)

	helpDescStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpDetailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	helpFlagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
)

// HelpPanel shows the help text of the focused field.
type HelpPanel struct {
	field string
	width int
}

// NewHelpPanel creates a help panel 60 columns wide.
func NewHelpPanel() *HelpPanel {
	return &HelpPanel{width: 60}
}

// SetField selects the field whose help is shown.
func (h *HelpPanel) SetField(key string) { h.field = key }

// SetWidth resizes the panel. Widths under 30 columns are ignored.
func (h *HelpPanel) SetWidth(width int) {
	if width >= 30 {
		h.width = width
	}
}

// View renders the panel.
func (h *HelpPanel) View() string {
	style := helpPanelStyle.Width(h.width - 4)

	text, ok := help.Texts[h.field]
	if !ok {
		return style.Render("Select a field to see help")
	}

	parts := []string{helpTitleStyle.Render(text.Title), helpDescStyle.Render(text.Description)}
	if text.Details != "" {
		parts = append(parts, helpDetailStyle.Render(text.Details))
	}
	if text.Flag != "" {
		parts = append(parts, helpFlagStyle.Render("flag: "+text.Flag))
	}
	return style.Render(strings.Join(parts, "\n\n"))
}
