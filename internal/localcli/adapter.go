package localcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"tasksync/internal/api"
	"tasksync/pkg/logging"
)

// CLINotFoundError means the task CLI binary is not on PATH. Fatal at
// command start; nothing can proceed without the owning CLI.
type CLINotFoundError struct {
	Binary string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("task CLI %q not found on PATH", e.Binary)
}

// ExitError is a non-zero exit from the task CLI, with captured stderr.
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("task %s exited with code %d", strings.Join(e.Args, " "), e.Code)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// ParseError is malformed plain-text output, carrying the offending section.
type ParseError struct {
	Section string
	Detail  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse task CLI output (section %q): %s", e.Section, e.Detail)
}

// Adapter speaks to the owning task CLI exclusively via subprocess with its
// stable --plain output format. It never writes task files directly.
type Adapter struct {
	binary  string
	workdir string
}

// New creates an adapter invoking the given binary in workdir.
func New(binary, workdir string) *Adapter {
	return &Adapter{binary: binary, workdir: workdir}
}

// run spawns one task CLI invocation and captures both streams.
func (a *Adapter) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, a.binary, args...)
	cmd.Dir = a.workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("LocalCLI", "Running %s %s", a.binary, strings.Join(args, " "))
	err := cmd.Run()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", &CLINotFoundError{Binary: a.binary}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Args: args, Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("running %s: %w", a.binary, err)
	}
	return stdout.String(), nil
}

// ListTasks returns task summaries, optionally filtered by status,
// assignee, label or priority.
func (a *Adapter) ListTasks(ctx context.Context, filter api.TaskFilter) ([]api.Task, error) {
	args := []string{"list", "--plain"}
	if filter.Status != "" {
		args = append(args, "--status", filter.Status)
	}
	if filter.Assignee != "" {
		args = append(args, "--assignee", filter.Assignee)
	}
	if filter.Label != "" {
		args = append(args, "--label", filter.Label)
	}
	if filter.Priority != "" {
		args = append(args, "--priority", filter.Priority)
	}
	out, err := a.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return ParseTaskList(out)
}

// GetTask returns the full task detail.
func (a *Adapter) GetTask(ctx context.Context, id string) (api.Task, error) {
	out, err := a.run(ctx, id, "--plain")
	if err != nil {
		return api.Task{}, err
	}
	task, err := ParseTaskDetail(out)
	if err != nil {
		return api.Task{}, err
	}
	if task.ID == "" {
		task.ID = id
	}
	return task, nil
}

// UpdateTask applies a mutation through `task edit`. Multiline strings are
// passed as single arguments; the CLI receives them verbatim.
func (a *Adapter) UpdateTask(ctx context.Context, id string, update api.TaskUpdate) error {
	if update.IsZero() {
		return nil
	}
	args := []string{"edit", id}
	if update.Title != nil {
		args = append(args, "--title", *update.Title)
	}
	if update.Description != nil {
		args = append(args, "--description", *update.Description)
	}
	if update.Status != nil {
		args = append(args, "--status", *update.Status)
	}
	if update.Assignee != nil {
		args = append(args, "--assignee", *update.Assignee)
	}
	for _, label := range update.Labels {
		args = append(args, "--label", label)
	}
	if update.Priority != nil {
		args = append(args, "--priority", *update.Priority)
	}
	for _, ac := range update.AddAC {
		args = append(args, "--add-ac", ac)
	}
	for _, idx := range update.RemoveAC {
		args = append(args, "--remove-ac", strconv.Itoa(idx))
	}
	for _, idx := range update.CheckAC {
		args = append(args, "--check-ac", strconv.Itoa(idx))
	}
	for _, idx := range update.UncheckAC {
		args = append(args, "--uncheck-ac", strconv.Itoa(idx))
	}
	if update.Plan != nil {
		args = append(args, "--plan", *update.Plan)
	}
	if update.AppendNotes != nil {
		args = append(args, "--append-notes", *update.AppendNotes)
	}
	_, err := a.run(ctx, args...)
	return err
}

// CreateTask creates a new local task and returns the CLI's echoed ID.
func (a *Adapter) CreateTask(ctx context.Context, create api.TaskCreate) (string, error) {
	args := []string{"create", create.Title}
	if create.Description != "" {
		args = append(args, "--description", create.Description)
	}
	if create.Status != "" {
		args = append(args, "--status", create.Status)
	}
	if create.Assignee != "" {
		args = append(args, "--assignee", create.Assignee)
	}
	for _, label := range create.Labels {
		args = append(args, "--label", label)
	}
	if create.Priority != "" {
		args = append(args, "--priority", create.Priority)
	}
	for _, c := range create.AcceptanceCriteria {
		args = append(args, "--add-ac", c.Text)
	}
	out, err := a.run(ctx, args...)
	if err != nil {
		return "", err
	}
	id, err := ParseCreatedID(out)
	if err != nil {
		return "", err
	}
	// Checked criteria need a follow-up edit; create only takes the text.
	var check []int
	for i, c := range create.AcceptanceCriteria {
		if c.Checked {
			check = append(check, i+1)
		}
	}
	if len(check) > 0 {
		if err := a.UpdateTask(ctx, id, api.TaskUpdate{CheckAC: check}); err != nil {
			return id, err
		}
	}
	return id, nil
}
