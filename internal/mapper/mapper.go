package mapper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tasksync/internal/api"
	"tasksync/internal/config"
	"tasksync/internal/frontmatter"
	"tasksync/internal/normalize"
	"tasksync/internal/remote"
	"tasksync/internal/store"
	"tasksync/pkg/logging"
)

const subsystem = "mapper"

// DefaultMinScore is the auto-mapping acceptance threshold.
const DefaultMinScore = 0.7

// LocalSource is the slice of the task CLI adapter the mapper needs.
type LocalSource interface {
	ListTasks(ctx context.Context, filter api.TaskFilter) ([]api.Task, error)
	GetTask(ctx context.Context, id string) (api.Task, error)
}

// RemoteSource is the slice of the tracker adapter the mapper needs.
type RemoteSource interface {
	SearchIssues(ctx context.Context, jql string, opts remote.SearchOptions) (remote.SearchResult, error)
	GetIssue(ctx context.Context, key string) (api.Issue, error)
	BrowseURL(key string) string
}

// Mapper establishes bindings between local tasks and remote issues.
type Mapper struct {
	cfg    *config.Config
	store  *store.Store
	local  LocalSource
	remote RemoteSource
	norm   *normalize.Normalizer
}

// New wires a mapper over the shared adapters and state store.
func New(cfg *config.Config, st *store.Store, local LocalSource, rem RemoteSource) *Mapper {
	return &Mapper{
		cfg:    cfg,
		store:  st,
		local:  local,
		remote: rem,
		norm:   normalize.New(cfg),
	}
}

// Candidate is one scored remote issue considered for a local task.
type Candidate struct {
	Issue api.Issue
	Score float64
}

// Binding is one established local/remote pair.
type Binding struct {
	LocalID   string
	RemoteKey string
	Score     float64
}

// AutoResult summarizes a mapAuto run.
type AutoResult struct {
	Bound   []Binding
	Skipped []string
}

// searchJQL is the candidate query. The configured filter wins; otherwise
// the default project scopes the search.
func (m *Mapper) searchJQL() string {
	if m.cfg.JQLFilter != "" {
		return m.cfg.JQLFilter
	}
	if m.cfg.ProjectKey != "" {
		return fmt.Sprintf("project = %s ORDER BY created DESC", m.cfg.ProjectKey)
	}
	return "ORDER BY created DESC"
}

// unmappedTasks lists local tasks that have no binding yet.
func (m *Mapper) unmappedTasks(ctx context.Context) ([]api.Task, error) {
	tasks, err := m.local.ListTasks(ctx, api.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing local tasks: %w", err)
	}
	var unmapped []api.Task
	for _, t := range tasks {
		_, err := m.store.GetMapping(t.ID)
		switch {
		case err == nil:
			continue
		case errors.Is(err, store.ErrNotFound):
			unmapped = append(unmapped, t)
		default:
			return nil, err
		}
	}
	return unmapped, nil
}

// candidatePool fetches remote issues and drops the ones already bound.
func (m *Mapper) candidatePool(ctx context.Context) ([]api.Issue, error) {
	result, err := m.remote.SearchIssues(ctx, m.searchJQL(), remote.SearchOptions{MaxResults: 100})
	if err != nil {
		return nil, fmt.Errorf("searching remote candidates: %w", err)
	}
	var pool []api.Issue
	for _, issue := range result.Issues {
		_, err := m.store.GetMappingByRemoteKey(issue.Key)
		switch {
		case err == nil:
			continue
		case errors.Is(err, store.ErrNotFound):
			pool = append(pool, issue)
		default:
			return nil, err
		}
	}
	return pool, nil
}

// Rank scores the pool against one task, best first.
func Rank(task api.Task, pool []api.Issue) []Candidate {
	candidates := make([]Candidate, 0, len(pool))
	for _, issue := range pool {
		candidates = append(candidates, Candidate{Issue: issue, Score: TitleScore(task.Title, issue.Summary)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// MapAuto binds every unmapped local task whose best candidate scores at
// least minScore. A zero minScore means DefaultMinScore.
func (m *Mapper) MapAuto(ctx context.Context, minScore float64) (AutoResult, error) {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	tasks, err := m.unmappedTasks(ctx)
	if err != nil {
		return AutoResult{}, err
	}
	pool, err := m.candidatePool(ctx)
	if err != nil {
		return AutoResult{}, err
	}

	var result AutoResult
	for _, task := range tasks {
		candidates := Rank(task, pool)
		if len(candidates) == 0 || candidates[0].Score < minScore {
			logging.Debug(subsystem, "no candidate above %.2f for task %s", minScore, task.ID)
			result.Skipped = append(result.Skipped, task.ID)
			continue
		}
		best := candidates[0]
		if err := m.Bind(ctx, task, best.Issue, false); err != nil {
			return result, err
		}
		result.Bound = append(result.Bound, Binding{LocalID: task.ID, RemoteKey: best.Issue.Key, Score: best.Score})
		pool = removeIssue(pool, best.Issue.Key)
	}
	return result, nil
}

// MapLink binds one explicit pair. Both sides must exist; force overrides
// an existing binding on either side.
func (m *Mapper) MapLink(ctx context.Context, localID, remoteKey string, force bool) error {
	task, err := m.local.GetTask(ctx, localID)
	if err != nil {
		return fmt.Errorf("local task %s: %w", localID, err)
	}
	issue, err := m.remote.GetIssue(ctx, remoteKey)
	if err != nil {
		return fmt.Errorf("remote issue %s: %w", remoteKey, err)
	}
	return m.Bind(ctx, task, issue, force)
}

// Bind records the mapping, seeds both base snapshots from the current
// state of each side, and stamps the task file frontmatter. Seeding from
// the present means the next classification reads InSync for an untouched
// pair.
func (m *Mapper) Bind(ctx context.Context, task api.Task, issue api.Issue, force bool) error {
	if existing, err := m.store.GetMapping(task.ID); err == nil {
		if !force {
			return fmt.Errorf("task %s is already mapped to %s (use force to relink)", task.ID, existing.RemoteKey)
		}
		if err := m.store.DeleteMapping(task.ID); err != nil {
			return err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if existing, err := m.store.GetMappingByRemoteKey(issue.Key); err == nil {
		if !force {
			return fmt.Errorf("issue %s is already mapped to task %s (use force to relink)", issue.Key, existing.LocalID)
		}
		if err := m.store.DeleteMapping(existing.LocalID); err != nil {
			return err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	now := time.Now().UTC()
	if err := m.store.PutMapping(store.Mapping{LocalID: task.ID, RemoteKey: issue.Key}); err != nil {
		return fmt.Errorf("recording mapping: %w", err)
	}

	localPayload := m.norm.NormalizeLocal(task)
	remotePayload := m.norm.NormalizeRemote(issue)
	for _, snap := range []store.Snapshot{
		{LocalID: task.ID, Side: store.SideLocal, Hash: normalize.Hash(localPayload), Payload: localPayload, UpdatedAt: now},
		{LocalID: task.ID, Side: store.SideRemote, Hash: normalize.Hash(remotePayload), Payload: remotePayload, UpdatedAt: now},
	} {
		if err := m.store.PutSnapshot(snap); err != nil {
			return fmt.Errorf("seeding %s snapshot: %w", snap.Side, err)
		}
	}

	if task.FilePath != "" {
		remoteKey := issue.Key
		remoteURL := m.remote.BrowseURL(issue.Key)
		lastSync := now.Format(time.RFC3339)
		syncState := "in-sync"
		err := frontmatter.Update(task.FilePath, map[string]*string{
			frontmatter.KeyRemoteKey: &remoteKey,
			frontmatter.KeyRemoteURL: &remoteURL,
			frontmatter.KeyLastSync:  &lastSync,
			frontmatter.KeySyncState: &syncState,
		})
		if err != nil {
			logging.Warn(subsystem, "frontmatter update failed for %s: %v", task.FilePath, err)
		}
	}

	if err := m.store.AppendOp(store.OpEntry{
		Timestamp: now,
		Operation: store.OpMap,
		LocalID:   task.ID,
		RemoteKey: issue.Key,
		Status:    store.OpOK,
	}); err != nil {
		logging.Warn(subsystem, "op log append failed: %v", err)
	}
	logging.Info(subsystem, "mapped task %s to issue %s", task.ID, issue.Key)
	return nil
}

// Unbind drops the mapping and its snapshots and clears the frontmatter
// keys the engine owns.
func (m *Mapper) Unbind(ctx context.Context, localID string) error {
	mapping, err := m.store.GetMapping(localID)
	if err != nil {
		return err
	}
	task, err := m.local.GetTask(ctx, localID)
	if err == nil && task.FilePath != "" {
		err := frontmatter.Update(task.FilePath, map[string]*string{
			frontmatter.KeyRemoteKey: nil,
			frontmatter.KeyRemoteURL: nil,
			frontmatter.KeyLastSync:  nil,
			frontmatter.KeySyncState: nil,
		})
		if err != nil {
			logging.Warn(subsystem, "frontmatter cleanup failed for %s: %v", task.FilePath, err)
		}
	}
	if err := m.store.DeleteMapping(localID); err != nil {
		return err
	}
	if err := m.store.AppendOp(store.OpEntry{
		Timestamp: time.Now().UTC(),
		Operation: store.OpUnmap,
		LocalID:   localID,
		RemoteKey: mapping.RemoteKey,
		Status:    store.OpOK,
	}); err != nil {
		logging.Warn(subsystem, "op log append failed: %v", err)
	}
	return nil
}

func removeIssue(pool []api.Issue, key string) []api.Issue {
	out := pool[:0]
	for _, issue := range pool {
		if issue.Key != key {
			out = append(out, issue)
		}
	}
	return out
}
