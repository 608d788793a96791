package reconcile

import (
	"context"
	"fmt"

	"tasksync/internal/api"
	"tasksync/internal/normalize"
	"tasksync/internal/state"
	"tasksync/internal/store"
	"tasksync/pkg/logging"
)

// pushOne applies local values to the remote side of one classified pair.
func (r *Reconciler) pushOne(ctx context.Context, p pair, opts Options) (Action, error) {
	if p.state == state.InSync {
		return ActionNone, nil
	}

	// Dry run is a pure report; the refusal branches never fire.
	if opts.DryRun {
		logging.Info(subsystem, "dry-run: would push %s to %s", p.mapping.LocalID, p.mapping.RemoteKey)
		return ActionSkipped, nil
	}

	switch p.state {
	case state.NeedsPull:
		if !opts.Force {
			return ActionSkipped, fmt.Errorf("task %s has remote changes, pull first or use force", p.mapping.LocalID)
		}
	case state.Conflict:
		if !opts.Force {
			return ActionSkipped, fmt.Errorf("task %s is in conflict, resolve or use force", p.mapping.LocalID)
		}
	case state.Unknown:
		if !opts.Force {
			return ActionSkipped, fmt.Errorf("task %s has no base snapshots, run sync to seed them or use force", p.mapping.LocalID)
		}
	}

	if err := r.applyLocalToRemote(ctx, p); err != nil {
		return ActionSkipped, err
	}
	if err := r.finalize(ctx, p, store.OpPush); err != nil {
		return ActionSkipped, err
	}
	return ActionPushed, nil
}

// applyLocalToRemote writes every differing field. Status goes through the
// transition workflow; everything else through a direct field update.
func (r *Reconciler) applyLocalToRemote(ctx context.Context, p pair) error {
	fields := r.remoteFields(p.localPayload, p.remotePayload, p.task.Plan, p.task.Notes)
	if len(fields) > 0 {
		if err := r.remote.UpdateIssue(ctx, p.mapping.RemoteKey, fields); err != nil {
			return fmt.Errorf("updating issue %s: %w", p.mapping.RemoteKey, err)
		}
	}
	if p.localPayload.Status != p.remotePayload.Status {
		if err := r.transitionStatus(ctx, p.mapping.RemoteKey, p.localPayload.Status); err != nil {
			return err
		}
	}
	return nil
}

// remoteFields builds the update document for the fields that differ
// between the two payloads. Status is excluded; it moves via transitions.
func (r *Reconciler) remoteFields(local, remote normalize.Payload, plan, notes string) map[string]interface{} {
	fields := map[string]interface{}{}
	if local.Title != remote.Title {
		fields["summary"] = local.Title
	}
	if local.Description != remote.Description || !criteriaEqual(local.AcceptanceCriteria, remote.AcceptanceCriteria) {
		fields["description"] = r.composeRemoteDescription(local, plan, notes)
	}
	if !labelsEqual(local.Labels, remote.Labels) {
		fields["labels"] = local.Labels
	}
	if local.Priority != remote.Priority {
		fields["priority"] = r.norm.RemotePriorityName(local.Priority, r.cfg.ProjectKey)
	}
	if local.Assignee != remote.Assignee {
		if remoteUser, ok := r.cfg.ResolveAssignee(local.Assignee); ok {
			fields["assignee"] = remoteUser
		} else if local.Assignee != "" {
			logging.Warn(subsystem, "no assignee mapping for %s, pushing without assignee (try map-assignees)", local.Assignee)
		}
	}
	return fields
}

// composeRemoteDescription embeds the acceptance criteria, and optionally
// the plan and notes, as trailing sections of the remote description.
func (r *Reconciler) composeRemoteDescription(local normalize.Payload, plan, notes string) string {
	sections := normalize.Sections{
		Body:               local.Description,
		AcceptanceCriteria: local.AcceptanceCriteria,
	}
	if r.cfg.SyncPlan {
		sections.Plan = plan
	}
	if r.cfg.SyncNotes {
		sections.Notes = notes
	}
	return normalize.ComposeDescription(sections)
}

// CreateRemote creates a remote issue for an unmapped local task and binds
// the pair. Used by the create-issue command and the push create-new flow.
func (r *Reconciler) CreateRemote(ctx context.Context, localID string, dryRun bool) (string, error) {
	task, err := r.local.GetTask(ctx, localID)
	if err != nil {
		return "", fmt.Errorf("reading local task %s: %w", localID, err)
	}
	if _, err := r.store.GetMapping(localID); err == nil {
		return "", fmt.Errorf("task %s is already mapped", localID)
	}
	if r.cfg.ProjectKey == "" {
		return "", fmt.Errorf("projectKey is not configured")
	}

	payload := r.norm.NormalizeLocal(task)
	if dryRun {
		logging.Info(subsystem, "dry-run: would create issue in %s for task %s", r.cfg.ProjectKey, localID)
		return "", nil
	}

	additional := map[string]interface{}{
		"description": r.composeRemoteDescription(payload, task.Plan, task.Notes),
	}
	if len(payload.Labels) > 0 {
		additional["labels"] = payload.Labels
	}
	if payload.Priority != "" {
		additional["priority"] = r.norm.RemotePriorityName(payload.Priority, r.cfg.ProjectKey)
	}
	if payload.Assignee != "" {
		if remoteUser, ok := r.cfg.ResolveAssignee(payload.Assignee); ok {
			additional["assignee"] = remoteUser
		} else {
			logging.Warn(subsystem, "no assignee mapping for %s, creating without assignee (try map-assignees)", payload.Assignee)
		}
	}

	issueType := r.cfg.IssueType
	if issueType == "" {
		issueType = "Task"
	}
	issue, err := r.remote.CreateIssue(ctx, r.cfg.ProjectKey, issueType, payload.Title, additional)
	if err != nil {
		return "", fmt.Errorf("creating issue: %w", err)
	}

	if err := r.store.PutMapping(store.Mapping{LocalID: localID, RemoteKey: issue.Key}); err != nil {
		return issue.Key, fmt.Errorf("recording mapping: %w", err)
	}

	if payload.Status != "" {
		wanted := r.cfg.RemoteStatusesFor(payload.Status, r.cfg.ProjectKey)
		if len(wanted) > 0 && !containsFold(wanted, issue.Status) {
			if err := r.transitionStatus(ctx, issue.Key, payload.Status); err != nil {
				logging.Warn(subsystem, "created %s but could not set status: %v", issue.Key, err)
			}
		}
	}

	p := pair{mapping: store.Mapping{LocalID: localID, RemoteKey: issue.Key}, task: task}
	if err := r.finalize(ctx, p, store.OpPush); err != nil {
		return issue.Key, err
	}
	return issue.Key, nil
}

func criteriaEqual(a, b []api.Criterion) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].Checked != b[i].Checked {
			return false
		}
	}
	return true
}

func labelsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
