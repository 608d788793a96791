package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// viewCmd shows one mapping's fields side by side.
var viewCmd = &cobra.Command{
	Use:   "view <localId>",
	Short: "Show the local and remote fields of one mapping side by side",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		view, err := e.rec.Inspect(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s  <->  %s (%s)\nstate: %s\n\n", view.LocalID, view.RemoteKey, view.RemoteURL, colorState(view.State))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Local", "Remote"})
		t.AppendRows([]table.Row{
			{"title", view.Local.Title, view.Remote.Title},
			{"status", view.Local.Status, view.Remote.Status},
			{"priority", view.Local.Priority, view.Remote.Priority},
			{"assignee", view.Local.Assignee, view.Remote.Assignee},
			{"labels", strings.Join(view.Local.Labels, ", "), strings.Join(view.Remote.Labels, ", ")},
			{"description", firstLine(view.Local.Description), firstLine(view.Remote.Description)},
			{"criteria", fmt.Sprintf("%d items", len(view.Local.AcceptanceCriteria)), fmt.Sprintf("%d items", len(view.Remote.AcceptanceCriteria))},
		})
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + "…"
	}
	return s
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
