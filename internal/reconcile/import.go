package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasksync/internal/api"
	"tasksync/internal/config"
	"tasksync/internal/mapper"
	"tasksync/internal/normalize"
	"tasksync/internal/remote"
	"tasksync/internal/store"
	"tasksync/pkg/logging"
)

// ImportResult summarizes an import run.
type ImportResult struct {
	// Imported lists the remote keys for which a local task was created.
	Imported []string
	// AlreadyMapped counts remote hits that were bound before the run.
	AlreadyMapped int
	// Errors counts per-issue failures; the run continues past them.
	Errors int
}

// Import queries the tracker with the configured JQL and creates a local
// task for every unmapped hit. New pairs are bound with snapshots seeded
// from the current state, so the next classification reads InSync. The run
// also feeds the remote assignee names into auto-discovery.
func (r *Reconciler) Import(ctx context.Context, opts Options) (ImportResult, error) {
	jql := r.cfg.JQLFilter
	if jql == "" {
		if r.cfg.ProjectKey == "" {
			return ImportResult{}, fmt.Errorf("neither jqlFilter nor projectKey is configured")
		}
		jql = fmt.Sprintf("project = %s ORDER BY created DESC", r.cfg.ProjectKey)
	}

	result, err := r.remote.SearchIssues(ctx, jql, remote.SearchOptions{MaxResults: 100})
	if err != nil {
		return ImportResult{}, fmt.Errorf("searching remote issues: %w", err)
	}

	var imported ImportResult
	var unmapped []api.Issue
	for _, issue := range result.Issues {
		_, err := r.store.GetMappingByRemoteKey(issue.Key)
		switch {
		case err == nil:
			imported.AlreadyMapped++
		case errors.Is(err, store.ErrNotFound):
			unmapped = append(unmapped, issue)
		default:
			return imported, err
		}
	}

	m := mapper.New(r.cfg, r.store, r.local, r.remote)
	for _, issue := range unmapped {
		if opts.DryRun {
			logging.Info(subsystem, "dry-run: would import %s (%s)", issue.Key, issue.Summary)
			continue
		}
		if err := r.importOne(ctx, m, issue); err != nil {
			logging.Error(subsystem, err, "import of %s failed", issue.Key)
			imported.Errors++
			continue
		}
		imported.Imported = append(imported.Imported, issue.Key)
	}

	if !opts.DryRun {
		r.discoverAssignees(ctx, m, result.Issues)
	}
	return imported, nil
}

// importOne creates the local twin of one remote issue and binds the pair.
func (r *Reconciler) importOne(ctx context.Context, m *mapper.Mapper, issue api.Issue) error {
	payload := r.norm.NormalizeRemote(issue)
	status := payload.Status
	if _, known := r.cfg.StatusMapping[status]; !known {
		status = ""
	}

	create := api.TaskCreate{
		Title:              normalize.SanitizeTitle(issue.Summary),
		Description:        payload.Description,
		Status:             status,
		Assignee:           payload.Assignee,
		Labels:             payload.Labels,
		Priority:           payload.Priority,
		AcceptanceCriteria: payload.AcceptanceCriteria,
	}
	localID, err := r.local.CreateTask(ctx, create)
	if err != nil {
		return fmt.Errorf("creating local task: %w", err)
	}

	task, err := r.local.GetTask(ctx, localID)
	if err != nil {
		return fmt.Errorf("re-reading created task %s: %w", localID, err)
	}
	if err := m.Bind(ctx, task, issue, false); err != nil {
		return err
	}

	if err := r.store.AppendOp(store.OpEntry{
		Timestamp: time.Now().UTC(),
		Operation: store.OpImport,
		LocalID:   localID,
		RemoteKey: issue.Key,
		Status:    store.OpOK,
	}); err != nil {
		logging.Warn(subsystem, "op log append failed: %v", err)
	}
	logging.Info(subsystem, "imported %s as local task %s", issue.Key, localID)
	return nil
}

// discoverAssignees pairs the remote assignee names seen during import with
// local users and persists any new auto-mappings.
func (r *Reconciler) discoverAssignees(ctx context.Context, m *mapper.Mapper, issues []api.Issue) {
	tasks, err := r.local.ListTasks(ctx, api.TaskFilter{})
	if err != nil {
		logging.Warn(subsystem, "assignee discovery skipped: %v", err)
		return
	}
	seen := map[string]bool{}
	var names []string
	for _, issue := range issues {
		if issue.Assignee != "" && !seen[issue.Assignee] {
			seen[issue.Assignee] = true
			names = append(names, issue.Assignee)
		}
	}
	if m.DiscoverAssignees(tasks, names) {
		if err := r.SaveConfig(); err != nil {
			logging.Warn(subsystem, "could not persist auto-mapped assignees: %v", err)
		}
	}
}

// SaveConfig persists the in-memory configuration document.
func (r *Reconciler) SaveConfig() error {
	return config.Save(r.stateDir, *r.cfg)
}
