package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// verbWidth right-aligns status verbs the way cargo does.
const verbWidth = 12

// styles are bound to the destination writer so colour is only emitted when
// that writer is a terminal.
type styles struct {
	status  lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	prefix  lipgloss.Style
	notice  lipgloss.Style
}

func stylesFor(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		status: r.NewStyle().
			Foreground(lipgloss.Color("46")). // Green
			Bold(true).
			Width(verbWidth).
			Align(lipgloss.Right),
		warning: r.NewStyle().
			Foreground(lipgloss.Color("214")). // Orange
			Bold(true),
		err: r.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true),
		prefix: r.NewStyle().
			Foreground(lipgloss.Color("63")), // Purple
		notice: r.NewStyle().Bold(true),
	}
}
