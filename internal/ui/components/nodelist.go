package components

import (
	"fmt"
	"strings"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/ui/theme"
)

// NodeLine renders one node as a status line: icon, id, title and estimate.
func NodeLine(n graph.Node, state graph.NodeState) string {
	style := theme.ForState(state)
	title := n.Title
	if r := []rune(title); len(r) > 40 {
		title = string(r[:37]) + "..."
	}
	return fmt.Sprintf("%s %s  %s  %s",
		style.Render(state.Icon()),
		style.Render(fmt.Sprintf("%-26s", n.ID)),
		theme.Body.Render(fmt.Sprintf("%-40s", title)),
		theme.Hint.Render(fmt.Sprintf("%3d min", n.EstimatedMinutes)),
	)
}

// Rule renders a horizontal divider.
func Rule(width int) string {
	return theme.ProgressEmpty.Render(strings.Repeat("─", width))
}
