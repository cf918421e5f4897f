package styles

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	green = lipgloss.Color("#7DCE13")
	grey  = lipgloss.Color("#999999")
	dim   = lipgloss.Color("#6C6C6C")
)

var (
	Title     = lipgloss.NewStyle().Bold(true)
	TabActive = lipgloss.NewStyle().Bold(true).Foreground(green).Padding(0, 1)
	Tab       = lipgloss.NewStyle().Foreground(grey).Padding(0, 1)
	Header    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	Footer    = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	Box       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	Card      = Box.BorderForeground(green)
	Danger    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	Good      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD7AF"))
	Faint     = lipgloss.NewStyle().Foreground(dim)
	Label     = lipgloss.NewStyle().Foreground(grey).Width(22)
)

// Table returns the entity table styles.
func Table() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dim).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#000000")).
		Background(green).
		Bold(false)
	return s
}

// SortMark is appended to the title of the sorted column.
func SortMark(descending bool) string {
	if descending {
		return " ▼"
	}
	return " ▲"
}
