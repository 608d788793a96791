package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tasksync/internal/api"
	"tasksync/internal/config"
	"tasksync/internal/remote"
	"tasksync/internal/store"
)

// fakeLocal mimics the task CLI with in-memory tasks. Update semantics
// mirror the real CLI: acceptance-criteria indices are 1-based and refer to
// the ordering at the time of the call.
type fakeLocal struct {
	mu     sync.Mutex
	tasks  map[string]*api.Task
	nextID int
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{tasks: map[string]*api.Task{}}
}

func (f *fakeLocal) put(task api.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := task
	f.tasks[task.ID] = &t
}

func (f *fakeLocal) get(id string) api.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.tasks[id]
}

func (f *fakeLocal) ListTasks(ctx context.Context, filter api.TaskFilter) ([]api.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.Task
	for _, t := range f.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeLocal) GetTask(ctx context.Context, id string) (api.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return api.Task{}, fmt.Errorf("task %s not found", id)
	}
	return *t, nil
}

func (f *fakeLocal) UpdateTask(ctx context.Context, id string, update api.TaskUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Assignee != nil {
		t.Assignee = *update.Assignee
	}
	if update.Labels != nil {
		t.Labels = update.Labels
	}
	if update.Priority != nil {
		t.Priority = *update.Priority
	}
	for _, idx := range update.RemoveAC {
		if idx >= 1 && idx <= len(t.AcceptanceCriteria) {
			t.AcceptanceCriteria = append(t.AcceptanceCriteria[:idx-1], t.AcceptanceCriteria[idx:]...)
		}
	}
	for _, text := range update.AddAC {
		t.AcceptanceCriteria = append(t.AcceptanceCriteria, api.Criterion{Text: text})
	}
	for _, idx := range update.CheckAC {
		if idx >= 1 && idx <= len(t.AcceptanceCriteria) {
			t.AcceptanceCriteria[idx-1].Checked = true
		}
	}
	for _, idx := range update.UncheckAC {
		if idx >= 1 && idx <= len(t.AcceptanceCriteria) {
			t.AcceptanceCriteria[idx-1].Checked = false
		}
	}
	return nil
}

func (f *fakeLocal) CreateTask(ctx context.Context, create api.TaskCreate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("task-%d", f.nextID)
	f.tasks[id] = &api.Task{
		ID:                 id,
		Title:              create.Title,
		Description:        create.Description,
		Status:             create.Status,
		Assignee:           create.Assignee,
		Labels:             create.Labels,
		Priority:           create.Priority,
		AcceptanceCriteria: create.AcceptanceCriteria,
	}
	return id, nil
}

// fakeRemote mimics the tracker with in-memory issues and a fixed workflow.
type fakeRemote struct {
	mu          sync.Mutex
	issues      map[string]*api.Issue
	transitions []api.Transition
	comments    map[string][]string
	nextID      int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		issues:   map[string]*api.Issue{},
		comments: map[string][]string{},
		transitions: []api.Transition{
			{ID: "11", Name: "To Do", ToName: "To Do"},
			{ID: "21", Name: "Start Progress", ToName: "In Progress"},
			{ID: "31", Name: "Done", ToName: "Done"},
		},
	}
}

func (f *fakeRemote) put(issue api.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := issue
	f.issues[issue.Key] = &i
}

func (f *fakeRemote) get(key string) api.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.issues[key]
}

func (f *fakeRemote) SearchIssues(ctx context.Context, jql string, opts remote.SearchOptions) (remote.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result remote.SearchResult
	for _, i := range f.issues {
		result.Issues = append(result.Issues, *i)
	}
	result.Total = len(result.Issues)
	return result, nil
}

func (f *fakeRemote) GetIssue(ctx context.Context, key string) (api.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.issues[key]
	if !ok {
		return api.Issue{}, &remote.Error{Kind: remote.KindNotFound, Message: "issue " + key + " not found"}
	}
	return *i, nil
}

func (f *fakeRemote) UpdateIssue(ctx context.Context, key string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.issues[key]
	if !ok {
		return &remote.Error{Kind: remote.KindNotFound, Message: "issue " + key + " not found"}
	}
	if v, ok := fields["summary"].(string); ok {
		i.Summary = v
	}
	if v, ok := fields["description"].(string); ok {
		i.Description = v
	}
	if v, ok := fields["labels"].([]string); ok {
		i.Labels = v
	}
	if v, ok := fields["priority"].(string); ok {
		i.Priority = v
	}
	if v, ok := fields["assignee"].(string); ok {
		i.Assignee = v
	}
	return nil
}

func (f *fakeRemote) CreateIssue(ctx context.Context, project, issueType, summary string, additionalFields map[string]interface{}) (api.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	key := fmt.Sprintf("%s-%d", project, f.nextID)
	issue := &api.Issue{Key: key, Summary: summary, Status: "To Do", IssueType: issueType}
	if v, ok := additionalFields["description"].(string); ok {
		issue.Description = v
	}
	if v, ok := additionalFields["labels"].([]string); ok {
		issue.Labels = v
	}
	if v, ok := additionalFields["priority"].(string); ok {
		issue.Priority = v
	}
	if v, ok := additionalFields["assignee"].(string); ok {
		issue.Assignee = v
	}
	f.issues[key] = issue
	return *issue, nil
}

func (f *fakeRemote) GetTransitions(ctx context.Context, key string) ([]api.Transition, error) {
	return f.transitions, nil
}

func (f *fakeRemote) TransitionIssue(ctx context.Context, key, transitionID, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.issues[key]
	if !ok {
		return &remote.Error{Kind: remote.KindNotFound, Message: "issue " + key + " not found"}
	}
	for _, tr := range f.transitions {
		if tr.ID == transitionID {
			i.Status = tr.ToName
			if comment != "" {
				f.comments[key] = append(f.comments[key], comment)
			}
			return nil
		}
	}
	return &remote.Error{Kind: remote.KindProtocol, Message: "unknown transition " + transitionID}
}

func (f *fakeRemote) SearchUsers(ctx context.Context, query string) ([]api.User, error) {
	return nil, nil
}

func (f *fakeRemote) BrowseURL(key string) string {
	return "https://example.atlassian.net/browse/" + key
}

// newEngine builds a reconciler over fresh fakes and a temp store.
func newEngine(t *testing.T) (*Reconciler, *fakeLocal, *fakeRemote, *store.Store) {
	t.Helper()
	stateDir := t.TempDir()
	st, err := store.Open(stateDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.GetDefaultConfig()
	cfg.ProjectKey = "PROJ"
	local := newFakeLocal()
	rem := newFakeRemote()
	return New(&cfg, stateDir, st, local, rem), local, rem, st
}

// bindPair maps a pair and seeds in-sync snapshots by running one sync.
func bindPair(t *testing.T, r *Reconciler, st *store.Store, localID, remoteKey string) {
	t.Helper()
	require.NoError(t, st.PutMapping(store.Mapping{LocalID: localID, RemoteKey: remoteKey}))
	summary, err := r.Sync(context.Background(), Options{IDs: []string{localID}})
	require.NoError(t, err)
	require.False(t, summary.Failed(), "seeding sync failed: %+v", summary.Outcomes)
}
