package localcli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/api"
)

func TestParseTaskList(t *testing.T) {
	out := `To Do:
  task-1 - Fix login
  task-2 - Add rate limits

In Progress:
  task-3 - Polish dashboard
`
	tasks, err := ParseTaskList(out)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, api.Task{ID: "task-1", Title: "Fix login", Status: "To Do"}, tasks[0])
	assert.Equal(t, api.Task{ID: "task-3", Title: "Polish dashboard", Status: "In Progress"}, tasks[2])
}

func TestParseTaskListEmpty(t *testing.T) {
	tasks, err := ParseTaskList("")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestParseTaskListMalformed(t *testing.T) {
	_, err := ParseTaskList("To Do:\n  no separator here\n")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "list", parseErr.Section)
}

func TestParseTaskDetail(t *testing.T) {
	out := `Task task-7
Title: Fix login: edge cases
Status: In Progress
Assignee: @alice
Priority: high
Labels: auth, bug
File: tasks/task-7.md

Description:
The login handler drops sessions.

More detail here.

Acceptance Criteria:
- [x] handler returns 200
- [ ] session survives refresh

Implementation Plan:
1. Reproduce
2. Fix

Implementation Notes:
Fixed by reordering middleware.
`
	task, err := ParseTaskDetail(out)
	require.NoError(t, err)

	assert.Equal(t, "task-7", task.ID)
	assert.Equal(t, "Fix login: edge cases", task.Title)
	assert.Equal(t, "In Progress", task.Status)
	assert.Equal(t, "@alice", task.Assignee)
	assert.Equal(t, "high", task.Priority)
	assert.Equal(t, []string{"auth", "bug"}, task.Labels)
	assert.Equal(t, "tasks/task-7.md", task.FilePath)
	assert.Equal(t, "The login handler drops sessions.\n\nMore detail here.", task.Description)
	require.Len(t, task.AcceptanceCriteria, 2)
	assert.Equal(t, api.Criterion{Text: "handler returns 200", Checked: true}, task.AcceptanceCriteria[0])
	assert.Equal(t, api.Criterion{Text: "session survives refresh"}, task.AcceptanceCriteria[1])
	assert.Equal(t, "1. Reproduce\n2. Fix", task.Plan)
	assert.Equal(t, "Fixed by reordering middleware.", task.Notes)
}

func TestParseTaskDetailSectionBoundaries(t *testing.T) {
	// A `Word Word:` line inside free text starts a new section; everything
	// else stays in the current one.
	out := `Title: t
Description:
first part
Random Heading:
belongs to the new section
`
	task, err := ParseTaskDetail(out)
	require.NoError(t, err)
	assert.Equal(t, "first part", task.Description)
}

func TestParseTaskDetailUnexpectedHeader(t *testing.T) {
	_, err := ParseTaskDetail("garbage before any header\n")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "header", parseErr.Section)
}

func TestParseCreatedID(t *testing.T) {
	id, err := ParseCreatedID("Created task task-42\n")
	require.NoError(t, err)
	assert.Equal(t, "task-42", id)

	_, err = ParseCreatedID("done\n")
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}
