package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tasksync/internal/config"
	"tasksync/internal/remote"
)

// doctorCmd checks the environment end to end.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the task CLI, credentials and tracker connectivity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		stateDir := config.StateDir(root)
		healthy := true
		check := func(name string, err error) {
			if err != nil {
				healthy = false
				fmt.Printf("%s %s: %v\n", text.FgRed.Sprint("✗"), name, err)
				return
			}
			fmt.Printf("%s %s\n", text.FgGreen.Sprint("✓"), name)
		}

		cfg, cfgErr := config.Load(stateDir)
		check("configuration", cfgErr)
		if cfgErr != nil {
			return fmt.Errorf("fix the configuration first")
		}

		_, pathErr := exec.LookPath(cfg.TaskBinary())
		check(fmt.Sprintf("task CLI (%s)", cfg.TaskBinary()), pathErr)

		creds := config.CredentialsFromEnv()
		check("credentials", creds.Validate())

		if creds.Validate() == nil {
			rem := remote.New(remote.Options{
				Command:          cfg.MCPCommand,
				FallbackToDocker: cfg.FallbackToDocker,
				Credentials:      creds,
				Silent:           true,
			})
			connErr := withSpinner("probing tracker connection", func() error {
				if err := rem.Connect(ctx); err != nil {
					return err
				}
				return rem.Close()
			})
			check("tracker connection", connErr)
		} else {
			fmt.Printf("%s tracker connection skipped (no credentials)\n", text.Faint.Sprint("-"))
		}

		if !healthy {
			os.Exit(ExitCodeError)
		}
		fmt.Println("All checks passed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
