package normalize

import (
	"strings"

	"tasksync/internal/api"
)

// Section markers embedded in remote descriptions. Matching on recovery is
// case-insensitive; writing always uses these exact forms.
const (
	ACMarker    = "Acceptance Criteria:"
	PlanMarker  = "Implementation Plan:"
	NotesMarker = "Implementation Notes:"
)

// Sections is a remote description decomposed into its free-text body and
// the engine-owned trailing sections.
type Sections struct {
	Body               string
	AcceptanceCriteria []api.Criterion
	Plan               string
	Notes              string
}

// ParseDescription splits a remote description into body and trailing
// sections. Unmarked descriptions come back with everything in Body.
func ParseDescription(description string) Sections {
	var s Sections
	lines := strings.Split(strings.ReplaceAll(description, "\r\n", "\n"), "\n")

	current := ""
	var body, plan, notes []string
	for _, line := range lines {
		switch {
		case markerLine(line, ACMarker):
			current = "ac"
			continue
		case markerLine(line, PlanMarker):
			current = "plan"
			continue
		case markerLine(line, NotesMarker):
			current = "notes"
			continue
		}
		switch current {
		case "ac":
			if c, ok := parseChecklistLine(line); ok {
				s.AcceptanceCriteria = append(s.AcceptanceCriteria, c)
			}
		case "plan":
			plan = append(plan, line)
		case "notes":
			notes = append(notes, line)
		default:
			body = append(body, line)
		}
	}
	s.Body = strings.TrimSpace(strings.Join(body, "\n"))
	s.Plan = strings.TrimSpace(strings.Join(plan, "\n"))
	s.Notes = strings.TrimSpace(strings.Join(notes, "\n"))
	return s
}

// ComposeDescription rebuilds a remote description: body first, then the
// engine-owned sections, always as a single block at the end. Empty
// sections are omitted entirely.
func ComposeDescription(s Sections) string {
	parts := []string{}
	if s.Body != "" {
		parts = append(parts, strings.TrimSpace(s.Body))
	}
	if len(s.AcceptanceCriteria) > 0 {
		var b strings.Builder
		b.WriteString(ACMarker)
		for _, c := range s.AcceptanceCriteria {
			b.WriteString("\n")
			b.WriteString(checklistLine(c))
		}
		parts = append(parts, b.String())
	}
	if s.Plan != "" {
		parts = append(parts, PlanMarker+"\n"+strings.TrimSpace(s.Plan))
	}
	if s.Notes != "" {
		parts = append(parts, NotesMarker+"\n"+strings.TrimSpace(s.Notes))
	}
	return strings.Join(parts, "\n\n")
}

func markerLine(line, marker string) bool {
	return strings.EqualFold(strings.TrimSpace(line), marker)
}

func checklistLine(c api.Criterion) string {
	box := "[ ]"
	if c.Checked {
		box = "[x]"
	}
	return "- " + box + " " + c.Text
}

// parseChecklistLine recovers one `- [ ] text` / `- [x] text` item.
// The checked marker matches case-insensitively.
func parseChecklistLine(line string) (api.Criterion, bool) {
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
