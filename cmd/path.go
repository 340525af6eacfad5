package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/paths"
	"github.com/abhisek/pathwise/internal/ui/components"
	"github.com/abhisek/pathwise/internal/ui/theme"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Browse the learning paths of a course",
}

var pathListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learning paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		var list []paths.LearningPath
		if d, _ := cmd.Flags().GetString("difficulty"); d != "" {
			diff := graph.Difficulty(d)
			if !diff.Valid() {
				return fmt.Errorf("unknown difficulty %q (want beginner, intermediate or advanced)", d)
			}
			list = e.course.Catalog.ByDifficulty(diff)
		} else {
			list = e.course.Catalog.ListPaths()
		}

		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, theme.Hint.Render("No learning paths."))
			return nil
		}
		for _, p := range list {
			fmt.Fprintf(out, "%-26s %s\n", p.ID, theme.Heading.Render(p.Name))
			fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("  %s · %s · %d nodes · %d min",
				p.Type, p.TargetDifficulty, len(p.NodeSequence), p.EstimatedMinutes)))
		}
		return nil
	},
}

var pathShowCmd = &cobra.Command{
	Use:   "show <path-id>",
	Short: "Show a learning path's node sequence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.course.Catalog.GetPath(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render(p.Name))
		if p.Description != "" {
			fmt.Fprintln(out, theme.Body.Render(p.Description))
		}
		fmt.Fprintln(out, components.Rule(60))
		for i, id := range p.NodeSequence {
			n, err := e.course.Graph.GetNode(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%2d. %-26s %s\n", i+1, n.ID, n.Title)
		}
		fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("%d min total", p.EstimatedMinutes)))
		return nil
	},
}

func init() {
	pathListCmd.Flags().String("difficulty", "", "Only paths targeting this difficulty")
	pathCmd.AddCommand(pathListCmd)
	pathCmd.AddCommand(pathShowCmd)
}
