package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	filledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	indexStyle  = lipgloss.NewStyle().Width(5).Align(lipgloss.Right)
)

func slotState(filled bool) string {
	if filled {
		return filledStyle.Render("filled")
	}
	return emptyStyle.Render("empty")
}

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
