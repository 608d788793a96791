package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tasksync",
		Run: func(cmd *cobra.Command, args []string) {
			// rootCmd.Version is set in main via SetVersion.
			fmt.Fprintf(cmd.OutOrStdout(), "tasksync version %s\n", rootCmd.Version)
		},
	}
}
