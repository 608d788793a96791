package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tasksync/internal/mapper"
)

var (
	mapAutoMinScore float64
	mapLinkForce    bool
)

// mapCmd groups the binding subcommands.
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Bind local tasks to remote issues",
}

var mapAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Bind unmapped tasks to issues by title similarity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		m := mapper.New(&e.cfg, e.store, e.local, e.remote)
		result, err := m.MapAuto(ctx, mapAutoMinScore)
		if err != nil {
			return err
		}
		printMapResult(result)
		return nil
	},
}

var mapInteractiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Pick a remote candidate for each unmapped task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		m := mapper.New(&e.cfg, e.store, e.local, e.remote)
		result, err := m.MapInteractive(ctx)
		if err != nil && !errors.Is(err, mapper.ErrAborted) {
			return err
		}
		printMapResult(result)
		return nil
	},
}

var mapLinkCmd = &cobra.Command{
	Use:   "link <localId> <remoteKey>",
	Short: "Bind one task to one issue directly",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		m := mapper.New(&e.cfg, e.store, e.local, e.remote)
		if err := m.MapLink(ctx, args[0], args[1], mapLinkForce); err != nil {
			return err
		}
		fmt.Printf("mapped %s to %s\n", args[0], args[1])
		return nil
	},
}

var mapUnlinkCmd = &cobra.Command{
	Use:   "unlink <localId>",
	Short: "Remove a task's binding and its snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		m := mapper.New(&e.cfg, e.store, e.local, e.remote)
		if err := m.Unbind(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("unmapped %s\n", args[0])
		return nil
	},
}

func printMapResult(result mapper.AutoResult) {
	for _, b := range result.Bound {
		fmt.Printf("  %s -> %s (%.2f)\n", b.LocalID, b.RemoteKey, b.Score)
	}
	fmt.Printf("%d bound, %d skipped\n", len(result.Bound), len(result.Skipped))
}

func init() {
	rootCmd.AddCommand(mapCmd)
	mapCmd.AddCommand(mapAutoCmd)
	mapCmd.AddCommand(mapInteractiveCmd)
	mapCmd.AddCommand(mapLinkCmd)
	mapCmd.AddCommand(mapUnlinkCmd)

	mapAutoCmd.Flags().Float64Var(&mapAutoMinScore, "min-score", mapper.DefaultMinScore, "Minimum title similarity for automatic binding")
	mapLinkCmd.Flags().BoolVar(&mapLinkForce, "force", false, "Relink even when either side is already mapped")
}
