package api

import "time"

// Criterion is one acceptance criterion of a task: an ordered, individually
// checkable subitem.
type Criterion struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Task is the local record as owned by the task CLI. The engine reads it as
// an opaque record and never writes task files directly.
type Task struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Status             string      `json:"status"`
	Assignee           string      `json:"assignee,omitempty"`
	Labels             []string    `json:"labels,omitempty"`
	Priority           string      `json:"priority,omitempty"`
	AcceptanceCriteria []Criterion `json:"acceptanceCriteria,omitempty"`
	Plan               string      `json:"plan,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	FilePath           string      `json:"filePath,omitempty"`
}

// Issue is the remote record as owned by the issue tracker.
type Issue struct {
	Key         string    `json:"key"`
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	IssueType   string    `json:"issueType,omitempty"`
	Created     time.Time `json:"created,omitempty"`
	Updated     time.Time `json:"updated,omitempty"`
}

// TaskFilter narrows task list queries.
type TaskFilter struct {
	Status   string
	Assignee string
	Label    string
	Priority string
}

// TaskUpdate describes a mutation applied through the task CLI. Nil string
// pointers mean "leave unchanged"; AC index slices refer to the current
// 1-based ordering as displayed by the CLI.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Assignee    *string
	Labels      []string
	Priority    *string
	AddAC       []string
	RemoveAC    []int
	CheckAC     []int
	UncheckAC   []int
	Plan        *string
	AppendNotes *string
}

// IsZero reports whether the update carries no mutation at all.
func (u TaskUpdate) IsZero() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil &&
		u.Assignee == nil && u.Labels == nil && u.Priority == nil &&
		len(u.AddAC) == 0 && len(u.RemoveAC) == 0 && len(u.CheckAC) == 0 &&
		len(u.UncheckAC) == 0 && u.Plan == nil && u.AppendNotes == nil
}

// TaskCreate describes a new local task created during import.
type TaskCreate struct {
	Title              string
	Description        string
	Status             string
	Assignee           string
	Labels             []string
	Priority           string
	AcceptanceCriteria []Criterion
}

// Transition is a workflow edge exposed by the remote tracker. ToName may be
// empty when the tracker omits the destination status.
type Transition struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	ToName string `json:"toName,omitempty"`
}

// User is a remote tracker user as returned by user search.
type User struct {
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Project is a remote tracker project.
type Project struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}
