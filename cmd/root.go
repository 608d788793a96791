package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"tasksync/pkg/logging"
)

// Exit codes. Scripts branch on these, so keep them stable.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid
	// arguments, per-mapping failures).
	ExitCodeError = 1
)

// workspacePath points at the workspace root holding the .tasksync state
// directory. Empty means the current directory.
var workspacePath string

// verbose raises the log level to debug for this invocation.
var verbose bool

// rootCmd is the entry point when tasksync is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "tasksync",
	Short: "Keep local task files and your issue tracker in sync",
	Long: `tasksync reconciles markdown task records managed by a local task CLI
with issues in a remote tracker. It classifies every mapped pair against
the snapshots of the last successful sync, then pushes, pulls or resolves
in either direction without ever losing a change silently.

State lives in the workspace-local .tasksync directory. Credentials come
from the environment (JIRA_BASE_URL plus either JIRA_EMAIL/JIRA_API_TOKEN
or JIRA_PERSONAL_TOKEN).`,
	// SilenceUsage keeps handled errors from being drowned in usage text.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitFromEnv()
		if verbose {
			logging.SetLevel(logging.LevelDebug)
		}
	},
}

// SetVersion injects the build version from the main package.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the injected build version.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a semantic code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tasksync version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
	os.Exit(ExitCodeSuccess)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspacePath, "config-path", "", "Workspace root holding the .tasksync directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
