package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/api"
	"tasksync/internal/config"
)

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.AssigneeMapping = map[string]string{"alice": "alice@example.com"}
	cfg.AutoMappedAssignees = map[string]string{"bob": "Bob Jones"}
	return &cfg
}

func TestHashStability(t *testing.T) {
	n := New(testConfig())
	task := api.Task{
		ID:       "task-1",
		Title:    "Fix login",
		Status:   "In Progress",
		Priority: "High",
		Labels:   []string{"Auth", "bug", "auth"},
		Assignee: "@Alice",
		AcceptanceCriteria: []api.Criterion{
			{Text: "returns 200", Checked: true},
			{Text: "sets cookie"},
		},
	}

	p1 := n.NormalizeLocal(task)
	p2 := n.NormalizeLocal(task)
	require.Equal(t, p1, p2)
	assert.Equal(t, Hash(p1), Hash(p2))
	assert.NotEmpty(t, Hash(p1))
}

func TestHashIgnoresNilVsEmptySlices(t *testing.T) {
	a := Payload{Title: "t"}
	b := Payload{Title: "t", Labels: []string{}, AcceptanceCriteria: []api.Criterion{}}
	assert.Equal(t, Hash(a), Hash(b))
}

func TestNormalizeLocal(t *testing.T) {
	n := New(testConfig())
	p := n.NormalizeLocal(api.Task{
		Title:    "  Fix login  ",
		Status:   "Done",
		Priority: "HIGH",
		Assignee: "@Alice",
		Labels:   []string{"Bug", "auth", "BUG"},
	})
	assert.Equal(t, "Fix login", p.Title)
	assert.Equal(t, "Done", p.Status)
	assert.Equal(t, "high", p.Priority)
	assert.Equal(t, "alice", p.Assignee)
	assert.Equal(t, []string{"auth", "bug"}, p.Labels)
}

func TestNormalizeRemoteMapsBothSidesToSamePayload(t *testing.T) {
	n := New(testConfig())

	local := n.NormalizeLocal(api.Task{
		Title:    "Fix login",
		Status:   "Done",
		Priority: "high",
		Assignee: "@alice",
		Labels:   []string{"auth"},
		AcceptanceCriteria: []api.Criterion{
			{Text: "returns 200", Checked: true},
		},
	})
	remote := n.NormalizeRemote(api.Issue{
		Key:      "PROJ-1",
		Summary:  "Fix login",
		Status:   "Closed",
		Priority: "Highest",
		Assignee: "Alice@Example.com",
		Labels:   []string{"Auth"},
		Description: "Acceptance Criteria:\n- [x] returns 200",
	})

	assert.Equal(t, local, remote)
	assert.Equal(t, Hash(local), Hash(remote))
}

func TestCanonicalStatusUnknown(t *testing.T) {
	n := New(testConfig())
	assert.Equal(t, "weird status", n.CanonicalStatus("Weird Status"))
	assert.Equal(t, "Done", n.CanonicalStatus("resolved"))
}

func TestCanonicalStatusDuplicateAliasIsDeterministic(t *testing.T) {
	// "Closed" is claimed by two local statuses; the alphabetically first
	// one must win on every call.
	cfg := config.GetDefaultConfig()
	cfg.StatusMapping = map[string][]string{
		"Done":      {"Closed"},
		"Abandoned": {"Closed"},
	}
	n := New(&cfg)
	for i := 0; i < 50; i++ {
		assert.Equal(t, "Abandoned", n.CanonicalStatus("Closed"))
	}
}

func TestCanonicalPriority(t *testing.T) {
	n := New(testConfig())
	assert.Equal(t, "high", n.CanonicalPriority("Critical"))
	assert.Equal(t, "low", n.CanonicalPriority("lowest"))
	assert.Equal(t, "medium", n.CanonicalPriority(""))
	assert.Equal(t, "medium", n.CanonicalPriority("Blocker"))
}

func TestRemotePriorityNamePrefersFirstAlias(t *testing.T) {
	cfg := testConfig()
	cfg.PriorityMappingOverrides = map[string]map[string][]string{
		"OPS": {"high": {"Critical", "High"}},
	}
	n := New(cfg)
	assert.Equal(t, "High", n.RemotePriorityName("high", ""))
	assert.Equal(t, "Critical", n.RemotePriorityName("high", "OPS"))
}

func TestCanonicalAssigneeExplicitShadowsAuto(t *testing.T) {
	cfg := testConfig()
	cfg.AutoMappedAssignees["alice"] = "Someone Else"
	n := New(cfg)

	p := n.NormalizeRemote(api.Issue{Summary: "x", Assignee: "alice@example.com"})
	assert.Equal(t, "alice", p.Assignee)

	p = n.NormalizeRemote(api.Issue{Summary: "x", Assignee: "Bob Jones"})
	assert.Equal(t, "bob", p.Assignee)
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[PROJ-42] Hello: world", "(PROJ-42) Hello - world"},
		{`Say "hi" to 'them'`, "Say hi to them"},
		{"a   b\tc", "a b c"},
		{"plain title", "plain title"},
		{"weight: 100 {urgent}", "weight - 100 (urgent)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeTitle(tt.in), "input %q", tt.in)
	}
}
