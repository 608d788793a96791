package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/conflictui"
	"tasksync/internal/state"
	"tasksync/internal/store"
	"tasksync/pkg/logging"
)

// resolveConflict dispatches a conflicting pair on the effective strategy.
func (r *Reconciler) resolveConflict(ctx context.Context, p pair, opts Options) (Action, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = r.cfg.ConflictStrategy
	}
	if strategy == "" {
		strategy = config.StrategyPrompt
	}

	baseSnapshot, err := r.store.GetSnapshot(p.mapping.LocalID, store.SideLocal)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return ActionSkipped, err
	}
	conflicts := conflictui.Detect(p.localPayload, p.remotePayload, baseSnapshot.Payload)
	if len(conflicts) == 0 && strategy == config.StrategyPrompt {
		// Hashes disagree but no promptable field does (acceptance
		// criteria changed on both sides). Local wins; there is nothing
		// to ask the operator.
		logging.Info(subsystem, "conflict on %s is criteria-only, keeping local", p.mapping.LocalID)
		return r.resolveWithForce(ctx, p, opts, modePush)
	}

	switch strategy {
	case config.StrategyManual:
		return r.markManual(p, "strategy is manual")
	case config.StrategyPreferLocal:
		return r.resolveWithForce(ctx, p, opts, modePush)
	case config.StrategyPreferRemote:
		return r.resolveWithForce(ctx, p, opts, modePull)
	case config.StrategyPrompt:
		return r.resolveInteractive(ctx, p, opts, conflicts)
	}
	return ActionSkipped, fmt.Errorf("unknown conflict strategy %q", strategy)
}

// resolveWithForce routes a prefer-* strategy through the matching
// directional path with force semantics.
func (r *Reconciler) resolveWithForce(ctx context.Context, p pair, opts Options, direction mode) (Action, error) {
	forced := opts
	forced.Force = true
	var action Action
	var err error
	if direction == modePush {
		action, err = r.pushOne(ctx, p, forced)
	} else {
		action, err = r.pullOne(ctx, p, forced)
	}
	if err != nil {
		return action, err
	}
	if action == ActionPushed || action == ActionPulled {
		action = ActionResolved
	}
	return action, nil
}

// markManual records the conflict for human follow-up without touching
// either side.
func (r *Reconciler) markManual(p pair, detail string) (Action, error) {
	r.stampFrontmatter(p.task, p.mapping.RemoteKey, string(state.Conflict), time.Now().UTC())
	if err := r.store.AppendOp(store.OpEntry{
		Timestamp: time.Now().UTC(),
		Operation: store.OpResolve,
		LocalID:   p.mapping.LocalID,
		RemoteKey: p.mapping.RemoteKey,
		Status:    store.OpFailed,
		Detail:    detail,
	}); err != nil {
		logging.Warn(subsystem, "op log append failed: %v", err)
	}
	return ActionManual, nil
}

// resolveInteractive runs the field-by-field prompt and applies the
// confirmed values to both sides.
func (r *Reconciler) resolveInteractive(ctx context.Context, p pair, opts Options, conflicts []conflictui.FieldConflict) (Action, error) {
	if r.prompter == nil {
		return ActionSkipped, fmt.Errorf("conflict on %s needs interactive resolution, run sync from a terminal or pick a strategy", p.mapping.LocalID)
	}
	if opts.DryRun {
		logging.Info(subsystem, "dry-run: would prompt to resolve %s/%s", p.mapping.LocalID, p.mapping.RemoteKey)
		return ActionSkipped, nil
	}

	outcome, err := r.prompter.Resolve(p.mapping.LocalID, p.mapping.RemoteKey, conflicts)
	if err != nil {
		if errors.Is(err, conflictui.ErrCancelled) {
			return r.markManual(p, "cancelled")
		}
		return ActionSkipped, err
	}
	if !outcome.Confirmed {
		return r.markManual(p, "declined")
	}

	if err := r.applyResolutions(ctx, p, outcome.Resolutions); err != nil {
		return ActionSkipped, err
	}
	if err := r.finalize(ctx, p, store.OpResolve); err != nil {
		return ActionSkipped, err
	}

	if outcome.PersistStrategy != "" {
		r.cfg.ConflictStrategy = outcome.PersistStrategy
		if err := config.Save(r.stateDir, *r.cfg); err != nil {
			logging.Warn(subsystem, "could not persist conflict strategy: %v", err)
		} else {
			logging.Info(subsystem, "default conflict strategy set to %s", outcome.PersistStrategy)
		}
	}
	return ActionResolved, nil
}

// applyResolutions writes the chosen field values to whichever side
// currently disagrees with them. The merged payload becomes the new shared
// truth; finalize then snapshots it from both sides.
func (r *Reconciler) applyResolutions(ctx context.Context, p pair, resolutions []conflictui.Resolution) error {
	merged := p.localPayload
	for _, res := range resolutions {
		switch res.Field {
		case "title":
			merged.Title = res.Value
		case "description":
			merged.Description = res.Value
		case "status":
			merged.Status = res.Value
		case "assignee":
			merged.Assignee = res.Value
		case "priority":
			merged.Priority = res.Value
		case "labels":
			merged.Labels = splitLabels(res.Value)
		}
	}

	mergedPair := p
	mergedPair.localPayload = merged
	if err := r.applyLocalToRemote(ctx, mergedPair); err != nil {
		return err
	}

	// Bring the local side to the merged values as well.
	localTarget := p
	localTarget.remotePayload = merged
	if err := r.applyRemoteToLocal(ctx, localTarget); err != nil {
		return err
	}
	return nil
}

func splitLabels(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	labels := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			labels = append(labels, trimmed)
		}
	}
	return labels
}
