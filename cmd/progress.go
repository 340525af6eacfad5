package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/recommend"
	"github.com/abhisek/pathwise/internal/store"
	"github.com/abhisek/pathwise/internal/ui/components"
	"github.com/abhisek/pathwise/internal/ui/theme"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Track a learner's progress through a course",
}

var progressShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show node states and path completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := e.svc.Summarize(cmd.Context(), userFlag(cmd), e.course.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		p := sum.Progress
		g := e.course.Graph
		completed := p.CompletedSet()

		fmt.Fprintln(out, theme.Title.Render(fmt.Sprintf("%s · %s", p.UserID, p.CourseID)))
		if p.CurrentPathID != "" {
			label := p.CurrentPathID
			if path, err := e.course.Catalog.GetPath(p.CurrentPathID); err == nil {
				label = path.Name
			}
			fmt.Fprintln(out, components.NewProgressBar(label, sum.PathPercent, true, 60).View())
			fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("%d min remaining", sum.RemainingMinutes)))
		}
		fmt.Fprintln(out, components.Rule(60))
		for _, id := range g.TopologicalOrder() {
			n, _ := g.GetNode(id)
			state, _ := g.State(id, completed)
			fmt.Fprintln(out, components.NodeLine(n, state))
		}
		printDiagnostics(out, sum.Diagnostics)
		return nil
	},
}

var progressCompleteCmd = &cobra.Command{
	Use:   "complete <node-id>",
	Short: "Mark a node completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		user := userFlag(cmd)
		before, err := e.svc.GetProgress(cmd.Context(), user, e.course.ID)
		if err != nil {
			return err
		}
		from, err := e.course.Graph.State(args[0], before.CompletedSet())
		if err != nil {
			return err
		}
		p, err := e.svc.MarkCompleted(cmd.Context(), user, e.course.ID, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		n, _ := e.course.Graph.GetNode(args[0])
		if from == graph.StateCompleted {
			fmt.Fprintln(out, theme.Hint.Render(n.Title+" was already completed."))
		} else {
			fmt.Fprintln(out, components.NodeLine(n, graph.StateCompleted))
			if from == graph.StateLocked {
				fmt.Fprintln(out, theme.Hint.Render("Completed before its prerequisites."))
			}
		}
		printNext(out, e.course.Graph, p.RecommendedNextNodes)
		return nil
	},
}

var progressSelectCmd = &cobra.Command{
	Use:   "select <path-id>",
	Short: "Follow a learning path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.svc.SelectPath(cmd.Context(), userFlag(cmd), e.course.ID, args[0])
		if err != nil {
			return err
		}
		path, err := e.course.Catalog.GetPath(p.CurrentPathID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, components.NewProgressBar(path.Name, recommend.Percent(path, p), true, 60).View())
		printNext(out, e.course.Graph, p.RecommendedNextNodes)
		return nil
	},
}

var progressClearPathCmd = &cobra.Command{
	Use:   "clear-path",
	Short: "Stop following the current learning path",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.svc.ClearPath(cmd.Context(), userFlag(cmd), e.course.ID)
		if err != nil {
			return err
		}
		printNext(cmd.OutOrStdout(), e.course.Graph, p.RecommendedNextNodes)
		return nil
	},
}

var progressRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend the next nodes to study",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		_, res, err := e.svc.RecommendNext(cmd.Context(), userFlag(cmd), e.course.ID, limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printNext(out, e.course.Graph, res.NodeIDs)
		printDiagnostics(out, res.Diagnostics)
		return nil
	},
}

var progressHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List completion events",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		events, err := e.svc.History(cmd.Context(), userFlag(cmd), e.course.ID, store.QueryOpts{Limit: limit})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, theme.Hint.Render("No completions yet."))
			return nil
		}
		for _, ev := range events {
			path := ""
			if ev.PathID != "" {
				path = theme.Hint.Render("  (" + ev.PathID + ")")
			}
			fmt.Fprintf(out, "%s  %-26s %s%s\n", ev.At.Local().Format("2006-01-02 15:04"), ev.NodeID, ev.From.Label(), path)
		}
		return nil
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a learner's progress in the course",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		user := userFlag(cmd)
		if err := e.svc.Reset(cmd.Context(), user, e.course.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Progress for %s in %s reset.\n", user, e.course.ID)
		return nil
	},
}

func userFlag(cmd *cobra.Command) string {
	u, _ := cmd.Flags().GetString("user")
	return u
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func printNext(out io.Writer, g *graph.Store, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintln(out, theme.Hint.Render("Nothing left to recommend."))
		return
	}
	fmt.Fprintln(out, theme.Heading.Render("Up next"))
	for _, id := range ids {
		n, err := g.GetNode(id)
		if err != nil {
			continue
		}
		fmt.Fprintln(out, "  "+components.NodeLine(n, graph.StateAvailable))
	}
}

func printDiagnostics(out io.Writer, diags []recommend.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("note: %s %s", d.Kind, d.ID)))
	}
}

func init() {
	progressCmd.PersistentFlags().String("user", defaultUser(), "Learner id")
	progressRecommendCmd.Flags().Int("limit", 0, "Maximum number of recommendations (0: configured default)")
	progressHistoryCmd.Flags().Int("limit", 0, "Maximum number of events (0: all)")

	progressCmd.AddCommand(progressShowCmd)
	progressCmd.AddCommand(progressCompleteCmd)
	progressCmd.AddCommand(progressSelectCmd)
	progressCmd.AddCommand(progressClearPathCmd)
	progressCmd.AddCommand(progressRecommendCmd)
	progressCmd.AddCommand(progressHistoryCmd)
	progressCmd.AddCommand(progressResetCmd)
}
