package status

import "github.com/charmbracelet/lipgloss"

// Colors for the table view.
var (
	primaryColor = lipgloss.Color("#7C3AED")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	successColor = lipgloss.Color("#10B981")
	mutedColor   = lipgloss.Color("#9CA3AF")
)

// palette is the set of styles the table renderer uses. The plain palette
// has no colors or decorations, for pipes and files.
type palette struct {
	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	ok      lipgloss.Style
}

func styledPalette() palette {
	return palette{
		title:   lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		header:  lipgloss.NewStyle().Bold(true).Underline(true),
		cell:    lipgloss.NewStyle(),
		muted:   lipgloss.NewStyle().Foreground(mutedColor),
		warning: lipgloss.NewStyle().Foreground(warningColor).Bold(true),
		err:     lipgloss.NewStyle().Foreground(errorColor),
		ok:      lipgloss.NewStyle().Foreground(successColor),
	}
}

func plainPalette() palette {
	s := lipgloss.NewStyle()
	return palette{title: s, header: s, cell: s, muted: s, warning: s, err: s, ok: s}
}
