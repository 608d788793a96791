package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"tasksync/internal/api"
	"tasksync/internal/config"
)

// mapAssigneesCmd groups user-mapping maintenance. Explicit entries always
// shadow auto-discovered ones.
var mapAssigneesCmd = &cobra.Command{
	Use:   "map-assignees",
	Short: "Maintain the local-user to tracker-user mapping",
}

var mapAssigneesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List explicit and auto-discovered assignee mappings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Local", "Remote", "Kind"})
		for local, remote := range e.cfg.AssigneeMapping {
			t.AppendRow(table.Row{local, remote, "explicit"})
		}
		for local, remote := range e.cfg.AutoMappedAssignees {
			if _, shadowed := e.cfg.AssigneeMapping[local]; shadowed {
				continue
			}
			t.AppendRow(table.Row{local, remote, "auto"})
		}
		t.SortBy([]table.SortBy{{Name: "Local", Mode: table.Asc}})
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

var mapAssigneesAddCmd = &cobra.Command{
	Use:   "add <localUser> <remoteUser>",
	Short: "Add an explicit assignee mapping",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if e.cfg.AssigneeMapping == nil {
			e.cfg.AssigneeMapping = map[string]string{}
		}
		e.cfg.AssigneeMapping[args[0]] = args[1]
		if err := config.Save(e.stateDir, e.cfg); err != nil {
			return err
		}
		fmt.Printf("mapped %s to %s\n", args[0], args[1])
		return nil
	},
}

var mapAssigneesRemoveCmd = &cobra.Command{
	Use:   "remove <localUser>",
	Short: "Remove an assignee mapping, explicit or auto",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		_, hadExplicit := e.cfg.AssigneeMapping[args[0]]
		_, hadAuto := e.cfg.AutoMappedAssignees[args[0]]
		if !hadExplicit && !hadAuto {
			return fmt.Errorf("no mapping for %s", args[0])
		}
		delete(e.cfg.AssigneeMapping, args[0])
		delete(e.cfg.AutoMappedAssignees, args[0])
		if err := config.Save(e.stateDir, e.cfg); err != nil {
			return err
		}
		fmt.Printf("removed mapping for %s\n", args[0])
		return nil
	},
}

var mapAssigneesPromoteCmd = &cobra.Command{
	Use:   "promote <localUser>",
	Short: "Promote an auto-discovered mapping to an explicit one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		remote, ok := e.cfg.AutoMappedAssignees[args[0]]
		if !ok {
			return fmt.Errorf("no auto-discovered mapping for %s", args[0])
		}
		if e.cfg.AssigneeMapping == nil {
			e.cfg.AssigneeMapping = map[string]string{}
		}
		e.cfg.AssigneeMapping[args[0]] = remote
		delete(e.cfg.AutoMappedAssignees, args[0])
		if err := config.Save(e.stateDir, e.cfg); err != nil {
			return err
		}
		fmt.Printf("promoted %s -> %s to explicit\n", args[0], remote)
		return nil
	},
}

var mapAssigneesInteractiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Map unmapped local assignees by searching tracker users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		e, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		tasks, err := e.local.ListTasks(ctx, api.TaskFilter{})
		if err != nil {
			return err
		}
		unmapped := unmappedAssignees(e.cfg, tasks)
		if len(unmapped) == 0 {
			fmt.Println("Every local assignee is mapped.")
			return nil
		}

		rl, err := readline.NewEx(&readline.Config{Prompt: "user> ", InterruptPrompt: "^C"})
		if err != nil {
			return err
		}
		defer rl.Close()

		changed := false
		for _, local := range unmapped {
			remote, done, err := pickRemoteUser(ctx, e, rl, local)
			if err != nil {
				return err
			}
			if done {
				break
			}
			if remote == "" {
				continue
			}
			if e.cfg.AssigneeMapping == nil {
				e.cfg.AssigneeMapping = map[string]string{}
			}
			e.cfg.AssigneeMapping[local] = remote
			changed = true
			fmt.Printf("mapped %s to %s\n", local, remote)
		}
		if changed {
			return config.Save(e.stateDir, e.cfg)
		}
		return nil
	},
}

// unmappedAssignees lists the distinct local assignees that resolve to
// nothing, sorted by first appearance.
func unmappedAssignees(cfg config.Config, tasks []api.Task) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tasks {
		if t.Assignee == "" || seen[t.Assignee] {
			continue
		}
		seen[t.Assignee] = true
		if _, ok := cfg.ResolveAssignee(t.Assignee); ok {
			continue
		}
		out = append(out, t.Assignee)
	}
	return out
}

// pickRemoteUser searches tracker users matching one local assignee and
// reads a choice. An empty result with done=false means skip; done=true
// aborts the session.
func pickRemoteUser(ctx context.Context, e *engine, rl *readline.Instance, local string) (string, bool, error) {
	query := strings.TrimPrefix(local, "@")
	users, err := e.remote.SearchUsers(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "user search for %s failed: %v\n", local, err)
		return "", false, nil
	}

	fmt.Printf("\n%s\n", local)
	if len(users) == 0 {
		fmt.Println("  no tracker users match; enter an identifier manually or press enter to skip")
	}
	for i, u := range users {
		label := u.DisplayName
		if u.Email != "" {
			label += " <" + u.Email + ">"
		}
		fmt.Printf("  [%d] %s\n", i+1, label)
	}
	fmt.Println("  number = map, text = manual identifier, enter = skip, q = quit")

	line, err := rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	input := strings.TrimSpace(line)
	switch {
	case input == "":
		return "", false, nil
	case input == "q":
		return "", true, nil
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(users) {
		u := users[n-1]
		if u.Email != "" {
			return u.Email, false, nil
		}
		if u.AccountID != "" {
			return u.AccountID, false, nil
		}
		return u.DisplayName, false, nil
	}
	return input, false, nil
}

func init() {
	rootCmd.AddCommand(mapAssigneesCmd)
	mapAssigneesCmd.AddCommand(mapAssigneesShowCmd)
	mapAssigneesCmd.AddCommand(mapAssigneesAddCmd)
	mapAssigneesCmd.AddCommand(mapAssigneesRemoveCmd)
	mapAssigneesCmd.AddCommand(mapAssigneesPromoteCmd)
	mapAssigneesCmd.AddCommand(mapAssigneesInteractiveCmd)
}
