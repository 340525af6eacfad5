package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/ui/components"
	"github.com/abhisek/pathwise/internal/ui/theme"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect a course knowledge graph",
}

var graphNodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List nodes in topological order",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		g := e.course.Graph
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render(fmt.Sprintf("%s  v%s", e.course.ID, e.course.Version)))
		fmt.Fprintln(out, components.Rule(60))
		for _, id := range g.TopologicalOrder() {
			n, _ := g.GetNode(id)
			fmt.Fprintf(out, "%-26s %s  %s\n",
				n.ID,
				theme.ForImportance(n.Importance).Render(fmt.Sprintf("%-11s", n.Importance)),
				n.Title,
			)
		}
		fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("%d nodes, %d roots", g.Len(), len(g.Roots()))))
		return nil
	},
}

var graphShowCmd = &cobra.Command{
	Use:   "show <node-id>",
	Short: "Show a node with its prerequisites, dependents and related nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		g := e.course.Graph
		n, err := g.GetNode(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		var b strings.Builder
		fmt.Fprintln(&b, theme.Title.Render(n.Title))
		fmt.Fprintf(&b, "%s · %s · %s · %d min\n", n.ID, n.Difficulty, theme.ForImportance(n.Importance).Render(string(n.Importance)), n.EstimatedMinutes)
		if n.Description != "" {
			fmt.Fprintln(&b, theme.Body.Render(n.Description))
		}
		fmt.Fprint(out, theme.Card.Render(strings.TrimRight(b.String(), "\n"))+"\n")

		section := func(title string, lines []string) {
			if len(lines) == 0 {
				return
			}
			fmt.Fprintln(out, theme.Heading.Render(title))
			for _, l := range lines {
				fmt.Fprintln(out, "  "+l)
			}
		}

		var prereqs []string
		for _, nb := range g.PrerequisiteLinks(n.ID) {
			prereqs = append(prereqs, fmt.Sprintf("%-26s strength %d", nb.Node.ID, nb.Strength()))
		}
		section("Prerequisites", prereqs)

		var deps []string
		for _, d := range g.GetDependents(n.ID) {
			deps = append(deps, d.ID)
		}
		section("Unlocks", deps)

		var related []string
		for _, nb := range g.GetRelated(n.ID, graph.RelationRelatesTo, graph.RelationAppliesTo) {
			dir := "→"
			if !nb.Outgoing {
				dir = "←"
			}
			related = append(related, fmt.Sprintf("%s %-26s %s", dir, nb.Node.ID, nb.Relationship.Type))
		}
		section("Related", related)

		if len(n.Concepts) > 0 {
			section("Concepts", []string{strings.Join(n.Concepts, ", ")})
		}
		return nil
	},
}

var graphRootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List nodes without prerequisites",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()
		for _, id := range e.course.Graph.Roots() {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	graphCmd.AddCommand(graphNodesCmd)
	graphCmd.AddCommand(graphShowCmd)
	graphCmd.AddCommand(graphRootsCmd)
}
