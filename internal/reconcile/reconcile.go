package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"tasksync/internal/api"
	"tasksync/internal/config"
	"tasksync/internal/conflictui"
	"tasksync/internal/frontmatter"
	"tasksync/internal/normalize"
	"tasksync/internal/remote"
	"tasksync/internal/state"
	"tasksync/internal/store"
	"tasksync/pkg/logging"
)

const subsystem = "reconcile"

// Local is the slice of the task CLI adapter the reconciler needs.
type Local interface {
	ListTasks(ctx context.Context, filter api.TaskFilter) ([]api.Task, error)
	GetTask(ctx context.Context, id string) (api.Task, error)
	UpdateTask(ctx context.Context, id string, update api.TaskUpdate) error
	CreateTask(ctx context.Context, create api.TaskCreate) (string, error)
}

// Remote is the slice of the tracker adapter the reconciler needs.
type Remote interface {
	SearchIssues(ctx context.Context, jql string, opts remote.SearchOptions) (remote.SearchResult, error)
	GetIssue(ctx context.Context, key string) (api.Issue, error)
	UpdateIssue(ctx context.Context, key string, fields map[string]interface{}) error
	CreateIssue(ctx context.Context, project, issueType, summary string, additionalFields map[string]interface{}) (api.Issue, error)
	GetTransitions(ctx context.Context, key string) ([]api.Transition, error)
	TransitionIssue(ctx context.Context, key, transitionID, comment string) error
	SearchUsers(ctx context.Context, query string) ([]api.User, error)
	BrowseURL(key string) string
}

// ConflictPrompter drives interactive conflict resolution. The terminal
// implementation lives in conflictui; tests inject fakes.
type ConflictPrompter interface {
	Resolve(localID, remoteKey string, conflicts []conflictui.FieldConflict) (conflictui.Outcome, error)
}

// Options tune one reconciliation run.
type Options struct {
	// IDs restricts the run to these local IDs. Empty means every mapping.
	IDs []string
	// DryRun reports what would happen without mutating either side.
	DryRun bool
	// Force overrides the refusal paths (push over NeedsPull/Conflict,
	// pull over NeedsPush/Conflict).
	Force bool
	// Strategy overrides the configured conflict strategy for this run.
	Strategy config.ConflictStrategy
}

// Action names what happened to one mapping.
type Action string

const (
	ActionNone     Action = "none"
	ActionPushed   Action = "pushed"
	ActionPulled   Action = "pulled"
	ActionResolved Action = "resolved"
	ActionManual   Action = "manual"
	ActionSkipped  Action = "skipped"
)

// Outcome is the per-mapping result of a run.
type Outcome struct {
	LocalID   string
	RemoteKey string
	State     state.SyncState
	Action    Action
	Err       error
}

// Summary aggregates a run. Errors stay attached to their outcomes; the
// summary only counts them.
type Summary struct {
	Outcomes  []Outcome
	Synced    int
	Conflicts int
	Errors    int
}

// Failed reports whether any mapping errored.
func (s Summary) Failed() bool {
	return s.Errors > 0
}

// Reconciler is the engine. One instance per command invocation; the
// configuration is treated as immutable for the run except for a persisted
// conflict-strategy preference.
type Reconciler struct {
	cfg      *config.Config
	stateDir string
	store    *store.Store
	local    Local
	remote   Remote
	norm     *normalize.Normalizer
	prompter ConflictPrompter
}

// New wires a reconciler over the shared adapters and state store.
func New(cfg *config.Config, stateDir string, st *store.Store, local Local, rem Remote) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		stateDir: stateDir,
		store:    st,
		local:    local,
		remote:   rem,
		norm:     normalize.New(cfg),
	}
}

// SetPrompter installs the interactive conflict resolver. Without one, the
// prompt strategy fails per mapping instead of blocking.
func (r *Reconciler) SetPrompter(p ConflictPrompter) {
	r.prompter = p
}

type mode int

const (
	modePush mode = iota
	modePull
	modeSync
)

// Push applies local changes to the remote side for the selected mappings.
func (r *Reconciler) Push(ctx context.Context, opts Options) (Summary, error) {
	return r.run(ctx, modePush, opts)
}

// Pull applies remote changes to the local side for the selected mappings.
func (r *Reconciler) Pull(ctx context.Context, opts Options) (Summary, error) {
	return r.run(ctx, modePull, opts)
}

// Sync reconciles both directions, dispatching per mapping on the
// classified state.
func (r *Reconciler) Sync(ctx context.Context, opts Options) (Summary, error) {
	return r.run(ctx, modeSync, opts)
}

// run processes the selected mappings with bounded parallelism. Mappings
// are disjoint units; a per-mapping failure is recorded and the batch
// continues.
func (r *Reconciler) run(ctx context.Context, m mode, opts Options) (Summary, error) {
	mappings, err := r.selectMappings(opts.IDs)
	if err != nil {
		return Summary{}, err
	}

	sem := semaphore.NewWeighted(int64(r.cfg.Concurrency()))
	var mu sync.Mutex
	var summary Summary
	var wg sync.WaitGroup

	for _, mapping := range mappings {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(mapping store.Mapping) {
			defer wg.Done()
			defer sem.Release(1)
			outcome := r.reconcileOne(ctx, m, mapping, opts)
			mu.Lock()
			defer mu.Unlock()
			summary.Outcomes = append(summary.Outcomes, outcome)
			switch {
			case outcome.Err != nil:
				summary.Errors++
			case outcome.State == state.Conflict && outcome.Action == ActionManual:
				summary.Conflicts++
			case outcome.Action != ActionNone && outcome.Action != ActionSkipped:
				summary.Synced++
			}
		}(mapping)
	}
	wg.Wait()
	return summary, ctx.Err()
}

func (r *Reconciler) selectMappings(ids []string) ([]store.Mapping, error) {
	if len(ids) == 0 {
		return r.store.ListMappings()
	}
	mappings := make([]store.Mapping, 0, len(ids))
	for _, id := range ids {
		m, err := r.store.GetMapping(id)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", id, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// pair is one mapping with both sides read, normalized and classified.
type pair struct {
	mapping       store.Mapping
	task          api.Task
	issue         api.Issue
	localPayload  normalize.Payload
	remotePayload normalize.Payload
	state         state.SyncState
}

// loadPair reads both sides concurrently, normalizes them, and classifies
// against the base snapshots. A missing snapshot on either side reads as an
// empty hash and classifies Unknown.
func (r *Reconciler) loadPair(ctx context.Context, mapping store.Mapping) (pair, error) {
	p := pair{mapping: mapping}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		task, err := r.local.GetTask(gctx, mapping.LocalID)
		if err != nil {
			return fmt.Errorf("reading local task %s: %w", mapping.LocalID, err)
		}
		p.task = task
		return nil
	})
	g.Go(func() error {
		issue, err := r.remote.GetIssue(gctx, mapping.RemoteKey)
		if err != nil {
			return fmt.Errorf("reading remote issue %s: %w", mapping.RemoteKey, err)
		}
		p.issue = issue
		return nil
	})
	if err := g.Wait(); err != nil {
		return pair{}, err
	}

	p.localPayload = r.norm.NormalizeLocal(p.task)
	p.remotePayload = r.norm.NormalizeRemote(p.issue)

	snapLocal := r.snapshotHash(mapping.LocalID, store.SideLocal)
	snapRemote := r.snapshotHash(mapping.LocalID, store.SideRemote)
	p.state = state.Classify(normalize.Hash(p.localPayload), normalize.Hash(p.remotePayload), snapLocal, snapRemote)
	return p, nil
}

// snapshotHash reads one base snapshot hash; absent or unreadable
// snapshots read as empty, which the classifier treats as Unknown.
func (r *Reconciler) snapshotHash(localID string, side store.Side) string {
	snap, err := r.store.GetSnapshot(localID, side)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Warn(subsystem, "snapshot %s/%s unreadable: %v", localID, side, err)
		}
		return ""
	}
	return snap.Hash
}

func (r *Reconciler) reconcileOne(ctx context.Context, m mode, mapping store.Mapping, opts Options) Outcome {
	outcome := Outcome{LocalID: mapping.LocalID, RemoteKey: mapping.RemoteKey}

	p, err := r.loadPair(ctx, mapping)
	if err != nil {
		outcome.Err = err
		r.logFailure(mapping, store.OpSync, err)
		return outcome
	}
	outcome.State = p.state

	var action Action
	switch m {
	case modePush:
		action, err = r.pushOne(ctx, p, opts)
	case modePull:
		action, err = r.pullOne(ctx, p, opts)
	case modeSync:
		action, err = r.syncOne(ctx, p, opts)
	}
	outcome.Action = action
	outcome.Err = err
	if err != nil {
		r.logFailure(mapping, opName(m), err)
	}
	return outcome
}

func opName(m mode) string {
	switch m {
	case modePush:
		return store.OpPush
	case modePull:
		return store.OpPull
	default:
		return store.OpSync
	}
}

// syncOne dispatches one classified mapping in bidirectional mode.
func (r *Reconciler) syncOne(ctx context.Context, p pair, opts Options) (Action, error) {
	switch p.state {
	case state.InSync:
		return ActionNone, nil
	case state.NeedsPush:
		return r.pushOne(ctx, p, opts)
	case state.NeedsPull:
		return r.pullOne(ctx, p, opts)
	case state.Unknown:
		// No base to compare against. Seed by pushing the local record,
		// then refresh both snapshots from reality.
		seed := opts
		seed.Force = true
		return r.pushOne(ctx, p, seed)
	case state.Conflict:
		return r.resolveConflict(ctx, p, opts)
	}
	return ActionNone, fmt.Errorf("unhandled sync state %q", p.state)
}

// finalize writes the post-operation snapshots, stamps the frontmatter and
// appends the op-log entry, in that order. Both sides are re-read so the
// snapshots reflect what actually happened rather than what was intended.
func (r *Reconciler) finalize(ctx context.Context, p pair, operation string) error {
	task, err := r.local.GetTask(ctx, p.mapping.LocalID)
	if err != nil {
		return fmt.Errorf("re-reading local task: %w", err)
	}
	issue, err := r.remote.GetIssue(ctx, p.mapping.RemoteKey)
	if err != nil {
		return fmt.Errorf("re-reading remote issue: %w", err)
	}

	now := time.Now().UTC()
	localPayload := r.norm.NormalizeLocal(task)
	remotePayload := r.norm.NormalizeRemote(issue)
	for _, snap := range []store.Snapshot{
		{LocalID: p.mapping.LocalID, Side: store.SideLocal, Hash: normalize.Hash(localPayload), Payload: localPayload, UpdatedAt: now},
		{LocalID: p.mapping.LocalID, Side: store.SideRemote, Hash: normalize.Hash(remotePayload), Payload: remotePayload, UpdatedAt: now},
	} {
		if err := r.store.PutSnapshot(snap); err != nil {
			return fmt.Errorf("writing %s snapshot: %w", snap.Side, err)
		}
	}

	r.stampFrontmatter(task, p.mapping.RemoteKey, string(state.InSync), now)

	if err := r.store.AppendOp(store.OpEntry{
		Timestamp: now,
		Operation: operation,
		LocalID:   p.mapping.LocalID,
		RemoteKey: p.mapping.RemoteKey,
		Status:    store.OpOK,
	}); err != nil {
		logging.Warn(subsystem, "op log append failed: %v", err)
	}
	return nil
}

// stampFrontmatter updates the engine-owned metadata keys. Frontmatter is
// an index, not the source of truth, so failures only warn.
func (r *Reconciler) stampFrontmatter(task api.Task, remoteKey, syncState string, now time.Time) {
	if task.FilePath == "" {
		return
	}
	url := r.remote.BrowseURL(remoteKey)
	lastSync := now.Format(time.RFC3339)
	err := frontmatter.Update(task.FilePath, map[string]*string{
		frontmatter.KeyRemoteKey: &remoteKey,
		frontmatter.KeyRemoteURL: &url,
		frontmatter.KeyLastSync:  &lastSync,
		frontmatter.KeySyncState: &syncState,
	})
	if err != nil {
		logging.Warn(subsystem, "frontmatter update failed for %s: %v", task.FilePath, err)
	}
}

// logFailure records a failed operation. Snapshots are left untouched so
// the mapping reclassifies next run.
func (r *Reconciler) logFailure(mapping store.Mapping, operation string, opErr error) {
	logging.Error(subsystem, opErr, "%s failed for %s/%s (kind %s)",
		operation, mapping.LocalID, mapping.RemoteKey, remote.KindOf(opErr))
	if err := r.store.AppendOp(store.OpEntry{
		Timestamp: time.Now().UTC(),
		Operation: operation,
		LocalID:   mapping.LocalID,
		RemoteKey: mapping.RemoteKey,
		Status:    store.OpFailed,
		Detail:    opErr.Error(),
	}); err != nil {
		logging.Warn(subsystem, "op log append failed: %v", err)
	}
}
