package cmd

import (
	"github.com/spf13/cobra"

	"tasksync/internal/reconcile"
)

var (
	pushDryRun bool
	pushForce  bool
)

// pushCmd applies local changes to the tracker.
var pushCmd = &cobra.Command{
	Use:   "push [localId...]",
	Short: "Apply local task changes to the remote tracker",
	Long: `Pushes local changes to the tracker for the named mappings, or for all
mappings when none are named. Mappings with remote changes or conflicts are
refused unless --force, which overrides the remote side with local values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.rec.Push(ctx, reconcile.Options{
			IDs:    args,
			DryRun: pushDryRun,
			Force:  pushForce,
		})
		if err != nil {
			return err
		}
		return reportSummary(summary)
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "Report what would change without mutating anything")
	pushCmd.Flags().BoolVar(&pushForce, "force", false, "Override remote changes and conflicts with local values")
}
