package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tasksync/internal/config"
	"tasksync/internal/watcher"
)

var (
	watchInterval    time.Duration
	watchStrategy    string
	watchBatchSize   int
	watchStopOnError bool
)

// watchCmd runs unattended sync cycles until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously sync on an interval",
	Long: `Runs sync cycles across all mappings until interrupted. Conflicts are
handled by the given strategy; prompt is rejected because watch mode has no
terminal interaction. Failing cycles back off exponentially, with a longer
backoff when the tracker rate-limits. Changes in the local tasks directory
trigger an early cycle.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy := config.ConflictStrategy(watchStrategy)

		ctx, stop := signal.NotifyContext(commandContext(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		interval := watchInterval
		if interval <= 0 {
			interval = e.cfg.Interval()
		}
		w, err := watcher.New(e.rec, watcher.Options{
			Interval:    interval,
			Strategy:    strategy,
			BatchSize:   watchBatchSize,
			StopOnError: watchStopOnError,
			TasksDir:    e.cfg.TasksDir,
		})
		if err != nil {
			return err
		}

		counters, runErr := w.Run(ctx)
		fmt.Printf("watch finished: %d cycles, %d synced, %d conflicts, %d errors\n",
			counters.Cycles, counters.Synced, counters.Conflicts, counters.Errors)
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Cycle interval (default: configured syncInterval)")
	watchCmd.Flags().StringVar(&watchStrategy, "strategy", string(config.StrategyManual), "Conflict strategy (prefer-local, prefer-remote, manual)")
	watchCmd.Flags().IntVar(&watchBatchSize, "batch-size", watcher.DefaultBatchSize, "Mappings reconciled per concurrent batch")
	watchCmd.Flags().BoolVar(&watchStopOnError, "stop-on-error", false, "Exit after the first failing cycle")
}
