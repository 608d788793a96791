package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createIssueDryRun bool

// createIssueCmd creates a remote issue for an unmapped local task.
var createIssueCmd = &cobra.Command{
	Use:   "create-issue <localId>",
	Short: "Create a tracker issue from an unmapped local task",
	Long: `Creates a remote issue in the configured project from the named local
task, binds the pair, and sets the remote status to match the task.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		key, err := e.rec.CreateRemote(ctx, args[0], createIssueDryRun)
		if err != nil {
			return err
		}
		if key != "" {
			fmt.Printf("created %s (%s)\n", key, e.remote.BrowseURL(key))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createIssueCmd)
	createIssueCmd.Flags().BoolVar(&createIssueDryRun, "dry-run", false, "Report what would be created without creating it")
}
