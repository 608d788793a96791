package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tasksync/internal/reconcile"
	"tasksync/internal/state"
)

// statusCmd shows the classified state of every mapping.
var statusCmd = &cobra.Command{
	Use:   "status [localId...]",
	Short: "Show the sync state of every mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		var rows []reconcile.StatusRow
		if err := withSpinner("Classifying mappings", func() error {
			var err error
			rows, err = e.rec.Status(ctx, args)
			return err
		}); err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No mappings. Run 'tasksync map auto' or 'tasksync pull' to create some.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Task", "Issue", "Title", "State"})
		failed := 0
		for _, row := range rows {
			if row.Err != nil {
				failed++
				t.AppendRow(table.Row{row.LocalID, row.RemoteKey, "", text.FgRed.Sprintf("error: %v", row.Err)})
				continue
			}
			t.AppendRow(table.Row{row.LocalID, row.RemoteKey, row.Title, colorState(row.State)})
		}
		t.SetStyle(table.StyleLight)
		t.Render()

		if failed > 0 {
			return fmt.Errorf("%d mapping(s) could not be classified", failed)
		}
		return nil
	},
}

func colorState(s state.SyncState) string {
	switch s {
	case state.InSync:
		return text.FgGreen.Sprint(s)
	case state.Conflict:
		return text.FgRed.Sprint(s)
	case state.Unknown:
		return text.Faint.Sprint(s)
	default:
		return text.FgYellow.Sprint(s)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
