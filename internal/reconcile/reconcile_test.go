package reconcile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/api"
	"tasksync/internal/conflictui"
	"tasksync/internal/config"
	"tasksync/internal/normalize"
	"tasksync/internal/state"
	"tasksync/internal/store"
)

func TestSyncSeedsUnknownPairThenInSync(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	require.NoError(t, st.PutMapping(store.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}))

	summary, err := r.Sync(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, state.Unknown, summary.Outcomes[0].State)
	require.NoError(t, summary.Outcomes[0].Err)

	// Snapshots were seeded, so the second run is a no-op.
	summary, err = r.Sync(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, state.InSync, summary.Outcomes[0].State)
	assert.Equal(t, ActionNone, summary.Outcomes[0].Action)
}

func TestPushRefusesUnknownStateWithoutForce(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	require.NoError(t, st.PutMapping(store.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}))

	summary, err := r.Push(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, state.Unknown, summary.Outcomes[0].State)
	require.Error(t, summary.Outcomes[0].Err)
	assert.Contains(t, summary.Outcomes[0].Err.Error(), "no base snapshots")

	// Force seeds the pair by pushing.
	summary, err = r.Push(context.Background(), Options{Force: true})
	require.NoError(t, err)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.Equal(t, ActionPushed, summary.Outcomes[0].Action)
}

func TestPushAppliesLocalChanges(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	task := local.get("task-1")
	task.Title = "Fix login flow properly"
	task.Status = "Done"
	task.AcceptanceCriteria = []api.Criterion{{Text: "login works", Checked: true}}
	local.put(task)

	summary, err := r.Push(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.Equal(t, state.NeedsPush, summary.Outcomes[0].State)
	assert.Equal(t, ActionPushed, summary.Outcomes[0].Action)

	issue := rem.get("PROJ-1")
	assert.Equal(t, "Fix login flow properly", issue.Summary)
	assert.Equal(t, "Done", issue.Status)
	assert.Contains(t, issue.Description, normalize.ACMarker)
	assert.Contains(t, issue.Description, "- [x] login works")

	// The transition carried an audit comment.
	require.Len(t, rem.comments["PROJ-1"], 1)
	assert.Contains(t, rem.comments["PROJ-1"][0], "tasksync")

	// Post-push, everything classifies in sync.
	rows, err := r.Status(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, state.InSync, rows[0].State)
}

func TestPushRefusesRemoteChangesWithoutForce(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	issue := rem.get("PROJ-1")
	issue.Summary = "Fix login (remote edit)"
	rem.put(issue)

	summary, err := r.Push(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, state.NeedsPull, summary.Outcomes[0].State)
	require.Error(t, summary.Outcomes[0].Err)
	assert.True(t, summary.Failed())

	// Force overrides with local values.
	summary, err = r.Push(context.Background(), Options{Force: true})
	require.NoError(t, err)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.Equal(t, "Fix login", rem.get("PROJ-1").Summary)
}

func TestPullAppliesRemoteChanges(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do",
		AcceptanceCriteria: []api.Criterion{{Text: "old criterion"}}})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do",
		Description: "Acceptance Criteria:\n- [ ] old criterion"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	issue := rem.get("PROJ-1")
	issue.Summary = "Fix login and signup"
	issue.Status = "In Progress"
	issue.Priority = "Highest"
	issue.Description = "New body text.\n\nAcceptance Criteria:\n- [x] login works\n- [ ] signup works"
	rem.put(issue)

	summary, err := r.Pull(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.Equal(t, ActionPulled, summary.Outcomes[0].Action)

	task := local.get("task-1")
	assert.Equal(t, "Fix login and signup", task.Title)
	assert.Equal(t, "In Progress", task.Status)
	assert.Equal(t, "high", task.Priority)
	assert.Equal(t, "New body text.", task.Description)
	require.Len(t, task.AcceptanceCriteria, 2)
	assert.Equal(t, api.Criterion{Text: "login works", Checked: true}, task.AcceptanceCriteria[0])
	assert.Equal(t, api.Criterion{Text: "signup works", Checked: false}, task.AcceptanceCriteria[1])
}

func TestPullKeepsUnknownRemoteStatus(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	issue := rem.get("PROJ-1")
	issue.Status = "Waiting For Vendor"
	rem.put(issue)

	summary, err := r.Pull(context.Background(), Options{})
	require.NoError(t, err)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.Equal(t, "To Do", local.get("task-1").Status)
}

func TestDryRunMutatesNothing(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Changed locally", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Original", Status: "To Do"})
	require.NoError(t, st.PutMapping(store.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}))

	summary, err := r.Push(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.Equal(t, ActionSkipped, summary.Outcomes[0].Action)
	assert.Equal(t, "Original", rem.get("PROJ-1").Summary)

	// Same for pull: a refusable state still reports instead of erroring.
	summary, err = r.Pull(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.Equal(t, ActionSkipped, summary.Outcomes[0].Action)
	assert.Equal(t, "Changed locally", local.get("task-1").Title)

	_, err = st.GetSnapshot("task-1", store.SideLocal)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConflictPreferRemote(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	task := local.get("task-1")
	task.Title = "Local edit"
	local.put(task)
	issue := rem.get("PROJ-1")
	issue.Summary = "Remote edit"
	rem.put(issue)

	summary, err := r.Sync(context.Background(), Options{Strategy: config.StrategyPreferRemote})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.Equal(t, state.Conflict, summary.Outcomes[0].State)
	assert.Equal(t, ActionResolved, summary.Outcomes[0].Action)
	assert.Equal(t, "Remote edit", local.get("task-1").Title)
}

func TestConflictManualTouchesNeither(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	task := local.get("task-1")
	task.Title = "Local edit"
	local.put(task)
	issue := rem.get("PROJ-1")
	issue.Summary = "Remote edit"
	rem.put(issue)

	summary, err := r.Sync(context.Background(), Options{Strategy: config.StrategyManual})
	require.NoError(t, err)
	assert.Equal(t, ActionManual, summary.Outcomes[0].Action)
	assert.Equal(t, 1, summary.Conflicts)
	assert.Equal(t, "Local edit", local.get("task-1").Title)
	assert.Equal(t, "Remote edit", rem.get("PROJ-1").Summary)

	ops, err := st.ReadOps()
	require.NoError(t, err)
	last := ops[len(ops)-1]
	assert.Equal(t, store.OpResolve, last.Operation)
	assert.Equal(t, store.OpFailed, last.Status)
}

type scriptedPrompter struct {
	outcome conflictui.Outcome
	err     error
	called  bool
}

func (s *scriptedPrompter) Resolve(localID, remoteKey string, conflicts []conflictui.FieldConflict) (conflictui.Outcome, error) {
	s.called = true
	return s.outcome, s.err
}

func TestConflictPromptAppliesConfirmedValues(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	task := local.get("task-1")
	task.Title = "Local edit"
	local.put(task)
	issue := rem.get("PROJ-1")
	issue.Summary = "Remote edit"
	rem.put(issue)

	prompter := &scriptedPrompter{outcome: conflictui.Outcome{
		Confirmed: true,
		Resolutions: []conflictui.Resolution{
			{Field: "title", Source: conflictui.SourceManual, Value: "Merged title"},
		},
	}}
	r.SetPrompter(prompter)

	summary, err := r.Sync(context.Background(), Options{Strategy: config.StrategyPrompt})
	require.NoError(t, err)
	require.NoError(t, summary.Outcomes[0].Err)
	assert.True(t, prompter.called)
	assert.Equal(t, ActionResolved, summary.Outcomes[0].Action)
	assert.Equal(t, "Merged title", local.get("task-1").Title)
	assert.Equal(t, "Merged title", rem.get("PROJ-1").Summary)
}

func TestConflictPromptCancelledMarksManual(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	task := local.get("task-1")
	task.Title = "Local edit"
	local.put(task)
	issue := rem.get("PROJ-1")
	issue.Summary = "Remote edit"
	rem.put(issue)

	r.SetPrompter(&scriptedPrompter{err: conflictui.ErrCancelled})
	summary, err := r.Sync(context.Background(), Options{Strategy: config.StrategyPrompt})
	require.NoError(t, err)
	assert.Equal(t, ActionManual, summary.Outcomes[0].Action)
	assert.Equal(t, "Local edit", local.get("task-1").Title)
	assert.Equal(t, "Remote edit", rem.get("PROJ-1").Summary)
}

func TestConflictPromptWithoutTerminalFails(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Fix login", Status: "To Do"})
	bindPair(t, r, st, "task-1", "PROJ-1")

	task := local.get("task-1")
	task.Title = "Local edit"
	local.put(task)
	issue := rem.get("PROJ-1")
	issue.Summary = "Remote edit"
	rem.put(issue)

	summary, err := r.Sync(context.Background(), Options{Strategy: config.StrategyPrompt})
	require.NoError(t, err)
	require.Error(t, summary.Outcomes[0].Err)
}

func TestImportCreatesAndBinds(t *testing.T) {
	r, local, rem, st := newEngine(t)
	rem.put(api.Issue{
		Key:         "PROJ-7",
		Summary:     "[Urgent] Fix: the login",
		Status:      "In Progress",
		Priority:    "High",
		Description: "Body.\n\nAcceptance Criteria:\n- [ ] works",
	})

	result, err := r.Import(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"PROJ-7"}, result.Imported)
	assert.Zero(t, result.Errors)

	mapping, err := st.GetMappingByRemoteKey("PROJ-7")
	require.NoError(t, err)
	task := local.get(mapping.LocalID)
	// Title was sanitized for frontmatter safety.
	assert.False(t, strings.ContainsAny(task.Title, "[]:"))
	assert.Equal(t, "In Progress", task.Status)
	assert.Equal(t, "high", task.Priority)
	assert.Equal(t, "Body.", task.Description)
	require.Len(t, task.AcceptanceCriteria, 1)

	// Snapshots were seeded, so the pair is immediately in sync.
	rows, err := r.Status(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, state.InSync, rows[0].State)

	// Second import is a no-op.
	result, err = r.Import(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Imported)
	assert.Equal(t, 1, result.AlreadyMapped)
}

func TestCreateRemote(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Build exporter", Status: "In Progress",
		Priority: "high", Labels: []string{"infra"}})

	key, err := r.CreateRemote(context.Background(), "task-1", false)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	issue := rem.get(key)
	assert.Equal(t, "Build exporter", issue.Summary)
	assert.Equal(t, "In Progress", issue.Status)
	assert.Equal(t, "High", issue.Priority)

	mapping, err := st.GetMapping("task-1")
	require.NoError(t, err)
	assert.Equal(t, key, mapping.RemoteKey)

	// A second create for the same task refuses.
	_, err = r.CreateRemote(context.Background(), "task-1", false)
	require.Error(t, err)
}

func TestPerMappingErrorIsolation(t *testing.T) {
	r, local, rem, st := newEngine(t)
	local.put(api.Task{ID: "task-1", Title: "Good", Status: "To Do"})
	rem.put(api.Issue{Key: "PROJ-1", Summary: "Good", Status: "To Do"})
	require.NoError(t, st.PutMapping(store.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}))
	// Mapping whose remote side is gone.
	require.NoError(t, st.PutMapping(store.Mapping{LocalID: "task-2", RemoteKey: "PROJ-404"}))
	local.put(api.Task{ID: "task-2", Title: "Orphan", Status: "To Do"})

	summary, err := r.Sync(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Synced)

	ops, err := st.ReadOps()
	require.NoError(t, err)
	var failed int
	for _, op := range ops {
		if op.Status == store.OpFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}
