package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"tasksync/internal/config"
	"tasksync/internal/localcli"
	"tasksync/internal/reconcile"
	"tasksync/internal/remote"
	"tasksync/internal/store"
)

// engine bundles everything a command needs: configuration, state store,
// both adapters and the reconciler over them.
type engine struct {
	cfg      config.Config
	stateDir string
	store    *store.Store
	local    *localcli.Adapter
	remote   *remote.Adapter
	rec      *reconcile.Reconciler
}

// workspaceRoot resolves the --config-path flag against the current
// directory.
func workspaceRoot() (string, error) {
	if workspacePath != "" {
		return workspacePath, nil
	}
	return os.Getwd()
}

// openEngine loads config and state and connects the remote adapter. The
// caller must Close. connectRemote=false skips the subprocess spawn for
// commands that never call the tracker.
func openEngine(ctx context.Context, connectRemote bool) (*engine, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	stateDir := config.StateDir(root)

	cfg, err := config.Load(stateDir)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(stateDir)
	if err != nil {
		return nil, err
	}

	local := localcli.New(cfg.TaskBinary(), root)
	rem := remote.New(remote.Options{
		Command:            cfg.MCPCommand,
		FallbackToDocker:   cfg.FallbackToDocker,
		Credentials:        config.CredentialsFromEnv(),
		RateLimitPerSecond: cfg.RateLimit(),
	})

	e := &engine{
		cfg:      cfg,
		stateDir: stateDir,
		store:    st,
		local:    local,
		remote:   rem,
	}
	e.rec = reconcile.New(&e.cfg, stateDir, st, local, rem)

	if connectRemote {
		if err := withSpinner("Connecting to tracker", func() error {
			return rem.Connect(ctx)
		}); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return e, nil
}

// Close releases the state store and the remote subprocess.
func (e *engine) Close() {
	_ = e.remote.Close()
	_ = e.store.Close()
}

// withSpinner runs fn behind a terminal spinner. Non-terminal output
// degrades gracefully; the spinner library handles that.
func withSpinner(message string, fn func() error) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	err := fn()
	s.Stop()
	return err
}

// reportSummary prints per-mapping results and returns an error when any
// mapping failed, so the command exits non-zero.
func reportSummary(summary reconcile.Summary) error {
	for _, o := range summary.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(os.Stderr, "  %s / %s: %v\n", o.LocalID, o.RemoteKey, o.Err)
			continue
		}
		if o.Action != reconcile.ActionNone {
			fmt.Printf("  %s / %s: %s\n", o.LocalID, o.RemoteKey, o.Action)
		}
	}
	fmt.Printf("%d synced, %d conflicts, %d errors\n", summary.Synced, summary.Conflicts, summary.Errors)
	if summary.Failed() {
		return fmt.Errorf("%d mapping(s) failed", summary.Errors)
	}
	return nil
}

// commandContext returns the cobra context or a fresh background one.
func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
