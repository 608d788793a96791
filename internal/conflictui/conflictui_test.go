package conflictui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tasksync/internal/config"
	"tasksync/internal/normalize"
)

func TestDetect(t *testing.T) {
	base := normalize.Payload{Title: "Old title", Status: "todo", Priority: "medium"}
	local := normalize.Payload{Title: "Local title", Status: "in-progress", Priority: "medium", Labels: []string{"auth"}}
	remote := normalize.Payload{Title: "Remote title", Status: "in-progress", Priority: "high"}

	conflicts := Detect(local, remote, base)
	fields := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{"title", "priority", "labels"}, fields)

	assert.Equal(t, "Local title", conflicts[0].Local)
	assert.Equal(t, "Remote title", conflicts[0].Remote)
	assert.Equal(t, "Old title", conflicts[0].Base)
}

func TestDetectNoDifferences(t *testing.T) {
	p := normalize.Payload{Title: "Same", Status: "todo"}
	assert.Empty(t, Detect(p, p, normalize.Payload{}))
}

func TestMajorityStrategy(t *testing.T) {
	r := &Resolver{majorityRatio: 2}

	strategy, ok := r.majorityStrategy(4, 1)
	assert.True(t, ok)
	assert.Equal(t, config.StrategyPreferLocal, strategy)

	strategy, ok = r.majorityStrategy(1, 3)
	assert.True(t, ok)
	assert.Equal(t, config.StrategyPreferRemote, strategy)

	_, ok = r.majorityStrategy(2, 2)
	assert.False(t, ok)
	_, ok = r.majorityStrategy(3, 2)
	assert.False(t, ok)
	_, ok = r.majorityStrategy(0, 0)
	assert.False(t, ok)

	// All picks on one side qualifies even with zero on the other.
	strategy, ok = r.majorityStrategy(2, 0)
	assert.True(t, ok)
	assert.Equal(t, config.StrategyPreferLocal, strategy)
}

func TestDisplay(t *testing.T) {
	assert.Contains(t, display(""), "empty")
	assert.Equal(t, "short", display("short"))

	long := strings.Repeat("x", 100)
	rendered := display(long)
	assert.True(t, strings.HasPrefix(rendered, strings.Repeat("x", displayLimit)))
	assert.True(t, strings.HasSuffix(rendered, "…"))

	multiline := display("first\nsecond\nthird")
	assert.Equal(t, "first…", multiline)
}
