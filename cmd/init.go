package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasksync/internal/config"
)

// initCmd scaffolds the workspace state directory.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold the .tasksync state directory",
	Long: `Creates the .tasksync directory with a default config.json and a
.gitignore covering the machine-local state (snapshots, op log). Existing
files are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		stateDir := config.StateDir(root)
		if err := config.Scaffold(stateDir); err != nil {
			return err
		}
		fmt.Printf("initialized %s\n", stateDir)
		fmt.Println("Edit config.json to set projectKey, then export the tracker credentials.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
