package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasksync/internal/reconcile"
)

var (
	pullDryRun   bool
	pullForce    bool
	pullNoImport bool
)

// pullCmd applies remote changes to the local tasks, importing unmapped
// remote issues first.
var pullCmd = &cobra.Command{
	Use:   "pull [localId...]",
	Short: "Apply remote issue changes to local tasks",
	Long: `Pulls remote changes into the local tasks for the named mappings, or for
all mappings when none are named. Unless --no-import, unmapped issues
matching the configured JQL are first imported as new local tasks. Mappings
with local changes or conflicts are refused unless --force.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		opts := reconcile.Options{IDs: args, DryRun: pullDryRun, Force: pullForce}

		if !pullNoImport && len(args) == 0 {
			imported, err := e.rec.Import(ctx, opts)
			if err != nil {
				return err
			}
			for _, key := range imported.Imported {
				fmt.Printf("  imported %s\n", key)
			}
			if imported.Errors > 0 {
				fmt.Printf("%d issue(s) failed to import\n", imported.Errors)
			}
		}

		summary, err := e.rec.Pull(ctx, opts)
		if err != nil {
			return err
		}
		return reportSummary(summary)
	},
}

func init() {
	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().BoolVar(&pullDryRun, "dry-run", false, "Report what would change without mutating anything")
	pullCmd.Flags().BoolVar(&pullForce, "force", false, "Override local changes and conflicts with remote values")
	pullCmd.Flags().BoolVar(&pullNoImport, "no-import", false, "Skip importing unmapped remote issues")
}
