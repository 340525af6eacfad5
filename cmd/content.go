package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/pathwise/internal/content"
	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/paths"
	"github.com/abhisek/pathwise/internal/ui/theme"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Work with course content files",
}

var contentValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate course files; exits non-zero on any problem",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, file := range args {
			c, err := content.LoadFile(file)
			if err != nil {
				failed++
				fmt.Fprintf(out, "%s %s\n", theme.ErrorText.Render("✗"), file)
				for _, line := range describe(err) {
					fmt.Fprintf(out, "    %s\n", line)
				}
				continue
			}
			fmt.Fprintf(out, "%s %s  %s %s  %d nodes  %d relationships  %d paths\n",
				theme.Completed.Render("✓"), file, c.ID, c.Version,
				c.Graph.Len(), len(c.Graph.Relationships()), c.Catalog.Len())
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed validation", failed, len(args))
		}
		return nil
	},
}

// describe flattens a load error into one line per problem.
func describe(err error) []string {
	var le *paths.LoadError
	if errors.As(err, &le) {
		lines := make([]string, 0, len(le.Rejected))
		for _, id := range le.IDs() {
			lines = append(lines, fmt.Sprintf("path %s: %v", id, le.Rejected[id]))
		}
		return lines
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, describe(e)...)
		}
		return lines
	}
	var ve *graph.ValidationError
	if errors.As(err, &ve) {
		return []string{ve.Error()}
	}
	return []string{err.Error()}
}

func init() {
	contentCmd.AddCommand(contentValidateCmd)
}
