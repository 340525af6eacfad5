// Package theme holds the lipgloss styles used in command output.
package theme

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/pathwise/internal/graph"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Heading = lipgloss.NewStyle().
		Bold(true).
		Foreground(Secondary)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	ErrorText = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)

// Node states
var (
	Locked = lipgloss.NewStyle().
		Foreground(TextDim)

	Available = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	Completed = lipgloss.NewStyle().
			Foreground(Success)
)

// Components
var (
	ProgressFilled = lipgloss.NewStyle().
			Foreground(Secondary)

	ProgressEmpty = lipgloss.NewStyle().
			Foreground(Border)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// ForState returns the style for a node state.
func ForState(s graph.NodeState) lipgloss.Style {
	switch s {
	case graph.StateCompleted:
		return Completed
	case graph.StateAvailable:
		return Available
	default:
		return Locked
	}
}

// ForImportance returns the style for an importance badge.
func ForImportance(i graph.Importance) lipgloss.Style {
	switch i {
	case graph.ImportanceCore:
		return lipgloss.NewStyle().Foreground(Primary).Bold(true)
	case graph.ImportanceRecommended:
		return lipgloss.NewStyle().Foreground(Secondary)
	default:
		return Hint
	}
}
