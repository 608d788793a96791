package reconcile

import (
	"context"
	"fmt"

	"tasksync/internal/api"
	"tasksync/internal/state"
	"tasksync/internal/store"
	"tasksync/pkg/logging"
)

// pullOne applies remote values to the local side of one classified pair.
func (r *Reconciler) pullOne(ctx context.Context, p pair, opts Options) (Action, error) {
	if p.state == state.InSync {
		return ActionNone, nil
	}

	// Dry run is a pure report; the refusal branches never fire.
	if opts.DryRun {
		logging.Info(subsystem, "dry-run: would pull %s into %s", p.mapping.RemoteKey, p.mapping.LocalID)
		return ActionSkipped, nil
	}

	switch p.state {
	case state.NeedsPush:
		if !opts.Force {
			return ActionSkipped, fmt.Errorf("task %s has local changes, push first or use force", p.mapping.LocalID)
		}
	case state.Conflict:
		if !opts.Force {
			return ActionSkipped, fmt.Errorf("task %s is in conflict, resolve or use force", p.mapping.LocalID)
		}
	}

	if err := r.applyRemoteToLocal(ctx, p); err != nil {
		return ActionSkipped, err
	}
	if err := r.finalize(ctx, p, store.OpPull); err != nil {
		return ActionSkipped, err
	}
	return ActionPulled, nil
}

// applyRemoteToLocal edits the local task through the CLI; the engine never
// writes task bodies directly. Acceptance criteria go in a fixed sequence
// of calls (removals, then additions, then checkbox fixes) because each
// step renumbers the indices the next one refers to.
func (r *Reconciler) applyRemoteToLocal(ctx context.Context, p pair) error {
	update := r.localUpdate(p)
	steps := []api.TaskUpdate{
		{Title: update.Title, Description: update.Description, Status: update.Status,
			Assignee: update.Assignee, Labels: update.Labels, Priority: update.Priority,
			RemoveAC: update.RemoveAC},
		{AddAC: update.AddAC},
		{CheckAC: update.CheckAC, UncheckAC: update.UncheckAC},
	}
	for _, step := range steps {
		if step.IsZero() {
			continue
		}
		if err := r.local.UpdateTask(ctx, p.mapping.LocalID, step); err != nil {
			return fmt.Errorf("updating task %s: %w", p.mapping.LocalID, err)
		}
	}
	return nil
}

func (r *Reconciler) localUpdate(p pair) api.TaskUpdate {
	var update api.TaskUpdate
	local, remote := p.localPayload, p.remotePayload

	if local.Title != remote.Title {
		update.Title = strPtr(remote.Title)
	}
	if local.Description != remote.Description {
		update.Description = strPtr(remote.Description)
	}
	if local.Status != remote.Status {
		// The remote status has already been canonicalized. If it maps to
		// nothing we know, the local status stays put.
		if _, known := r.cfg.StatusMapping[remote.Status]; known {
			update.Status = strPtr(remote.Status)
		} else {
			logging.Warn(subsystem, "remote status %q of %s has no local mapping, keeping %q",
				p.issue.Status, p.mapping.RemoteKey, local.Status)
		}
	}
	if local.Assignee != remote.Assignee && remote.Assignee != "" {
		update.Assignee = strPtr(remote.Assignee)
	}
	if !labelsEqual(local.Labels, remote.Labels) {
		update.Labels = remote.Labels
	}
	if local.Priority != remote.Priority {
		update.Priority = strPtr(remote.Priority)
	}

	removeAC, addAC, checkAC, uncheckAC := acDiff(local.AcceptanceCriteria, remote.AcceptanceCriteria)
	update.RemoveAC = removeAC
	update.AddAC = addAC
	update.CheckAC = checkAC
	update.UncheckAC = uncheckAC
	return update
}

// acDiff computes the CLI edit sequence turning the current criteria into
// the target list as a full replacement. Indices are 1-based. Removals come
// back in descending order so earlier removals don't shift later indices;
// the caller issues removals first, then additions, then check state fixes.
func acDiff(current, target []api.Criterion) (remove []int, add []string, check []int, uncheck []int) {
	prefix := 0
	for prefix < len(current) && prefix < len(target) && current[prefix].Text == target[prefix].Text {
		prefix++
	}

	for i := len(current); i > prefix; i-- {
		remove = append(remove, i)
	}
	for _, c := range target[prefix:] {
		add = append(add, c.Text)
	}

	// Shared prefix: flip checkboxes that differ.
	for i := 0; i < prefix; i++ {
		switch {
		case target[i].Checked && !current[i].Checked:
			check = append(check, i+1)
		case !target[i].Checked && current[i].Checked:
			uncheck = append(uncheck, i+1)
		}
	}
	// Added criteria start unchecked.
	for i := prefix; i < len(target); i++ {
		if target[i].Checked {
			check = append(check, i+1)
		}
	}
	return remove, add, check, uncheck
}

func strPtr(s string) *string {
	return &s
}
