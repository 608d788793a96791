package localcli

import (
	"regexp"
	"strings"

	"tasksync/internal/api"
)

// ParseTaskList parses `task list --plain` output: status headings ending
// in a colon, followed by indented `id - title` lines.
//
//	To Do:
//	  task-1 - Fix login
//	In Progress:
//	  task-3 - Polish dashboard
func ParseTaskList(out string) ([]api.Task, error) {
	var tasks []api.Task
	currentStatus := ""
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") && strings.HasSuffix(trimmed, ":") {
			currentStatus = strings.TrimSuffix(trimmed, ":")
			continue
		}
		id, title, ok := strings.Cut(trimmed, " - ")
		if !ok {
			return nil, &ParseError{Section: "list", Detail: "expected `id - title`, got " + trimmed}
		}
		tasks = append(tasks, api.Task{
			ID:     strings.TrimSpace(id),
			Title:  strings.TrimSpace(title),
			Status: currentStatus,
		})
	}
	return tasks, nil
}

// Header fields that appear as single `Key: value` lines at the top of the
// detail output, before any multi-line section.
var headerFields = map[string]bool{
	"Title":    true,
	"Status":   true,
	"Assignee": true,
	"Priority": true,
	"Labels":   true,
	"File":     true,
	"Id":       true,
}

// sectionHeaderRe matches section boundaries: a line that is one or two
// capitalized words ending in a colon, e.g. `Description:` or
// `Acceptance Criteria:`.
var sectionHeaderRe = regexp.MustCompile(`^[A-Z][A-Za-z]*( [A-Z][A-Za-z]*)?:$`)

// ParseTaskDetail parses `task <id> --plain` output: header key/value
// lines, then sections delimited by `Word Word:` lines. Content sticks to
// the current section until the next boundary.
func ParseTaskDetail(out string) (api.Task, error) {
	var task api.Task
	sections := map[string][]string{}
	current := ""

	for _, line := range strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)

		if current == "" {
			if key, value, ok := strings.Cut(trimmed, ":"); ok && headerFields[strings.TrimSpace(key)] {
				applyHeaderField(&task, strings.TrimSpace(key), strings.TrimSpace(value))
				continue
			}
			if id, ok := strings.CutPrefix(trimmed, "Task "); ok && task.ID == "" {
				task.ID = strings.TrimSpace(id)
				continue
			}
		}

		if sectionHeaderRe.MatchString(trimmed) {
			current = strings.TrimSuffix(trimmed, ":")
			continue
		}
		if current != "" {
			sections[current] = append(sections[current], line)
		} else if trimmed != "" {
			return api.Task{}, &ParseError{Section: "header", Detail: "unexpected line " + trimmed}
		}
	}

	task.Description = joinSection(sections["Description"])
	task.Plan = joinSection(sections["Implementation Plan"])
	task.Notes = joinSection(sections["Implementation Notes"])
	for _, line := range sections["Acceptance Criteria"] {
		if c, ok := parseACLine(line); ok {
			task.AcceptanceCriteria = append(task.AcceptanceCriteria, c)
		}
	}
	return task, nil
}

// createdIDRe recovers the new task ID from the create command's echo,
// e.g. `Created task task-42`.
var createdIDRe = regexp.MustCompile(`Created task ([A-Za-z0-9._-]+)`)

// ParseCreatedID extracts the echoed ID of a newly created task.
func ParseCreatedID(out string) (string, error) {
	if m := createdIDRe.FindStringSubmatch(out); m != nil {
		return m[1], nil
	}
	return "", &ParseError{Section: "create", Detail: "no created-task ID in output: " + strings.TrimSpace(out)}
}

func applyHeaderField(task *api.Task, key, value string) {
	switch key {
	case "Id":
		task.ID = value
	case "Title":
		task.Title = value
	case "Status":
		task.Status = value
	case "Assignee":
		task.Assignee = value
	case "Priority":
		task.Priority = value
	case "File":
		task.FilePath = value
	case "Labels":
		for _, l := range strings.Split(value, ",") {
			if l = strings.TrimSpace(l); l != "" {
				task.Labels = append(task.Labels, l)
			}
		}
	}
}

func joinSection(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func parseACLine(line string) (api.Criterion, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "-") {
		return api.Criterion{}, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
	switch {
	case strings.HasPrefix(rest, "[ ]"):
		return api.Criterion{Text: strings.TrimSpace(rest[3:])}, true
	case strings.HasPrefix(strings.ToLower(rest), "[x]"):
		return api.Criterion{Text: strings.TrimSpace(rest[3:]), Checked: true}, true
	}
	return api.Criterion{}, false
}
