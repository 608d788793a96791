package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasksync/internal/config"
	"tasksync/internal/conflictui"
	"tasksync/internal/reconcile"
)

var (
	syncDryRun   bool
	syncForce    bool
	syncStrategy string
)

// syncCmd reconciles both directions, prompting on conflicts by default.
var syncCmd = &cobra.Command{
	Use:   "sync [localId...]",
	Short: "Reconcile local tasks and remote issues in both directions",
	Long: `Classifies every selected mapping against the snapshots of the last
successful sync and pushes, pulls or resolves accordingly. Conflicts are
handled by the configured strategy; --strategy overrides it for this run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy := config.ConflictStrategy(syncStrategy)
		if strategy != "" && !strategy.Valid() {
			return fmt.Errorf("unknown conflict strategy %q", syncStrategy)
		}

		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		// Interactive resolution is available when sync runs from a
		// terminal session.
		if resolver, err := conflictui.NewResolver(); err == nil {
			defer resolver.Close()
			e.rec.SetPrompter(resolver)
		}

		summary, err := e.rec.Sync(ctx, reconcile.Options{
			IDs:      args,
			DryRun:   syncDryRun,
			Force:    syncForce,
			Strategy: strategy,
		})
		if err != nil {
			return err
		}
		return reportSummary(summary)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Report what would change without mutating anything")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Override refusal paths")
	syncCmd.Flags().StringVar(&syncStrategy, "strategy", "", "Conflict strategy for this run (prefer-local, prefer-remote, prompt, manual)")
}
