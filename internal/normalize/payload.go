package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"tasksync/internal/api"
	"tasksync/internal/config"
	"tasksync/pkg/logging"
)

// Payload is the canonical comparable form of either side of a mapping.
// Equality of payload hashes is the whole basis of sync-state
// classification, so every field that affects equality is serialized and
// nothing else is.
type Payload struct {
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Status             string          `json:"status"`
	Priority           string          `json:"priority"`
	Assignee           string          `json:"assignee"`
	Labels             []string        `json:"labels"`
	AcceptanceCriteria []api.Criterion `json:"acceptanceCriteria"`
}

// Normalizer canonicalizes tasks and issues into comparable payloads using
// the configured status, priority and assignee mappings.
type Normalizer struct {
	cfg *config.Config
}

// New creates a Normalizer bound to the given configuration.
func New(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// NormalizeLocal canonicalizes a local task.
func (n *Normalizer) NormalizeLocal(task api.Task) Payload {
	return Payload{
		Title:              normalizeText(task.Title),
		Description:        normalizeText(task.Description),
		Status:             strings.TrimSpace(task.Status),
		Priority:           normalizePriorityWord(task.Priority),
		Assignee:           normalizeAssignee(task.Assignee),
		Labels:             normalizeLabels(task.Labels),
		AcceptanceCriteria: normalizeCriteria(task.AcceptanceCriteria),
	}
}

// NormalizeRemote canonicalizes a remote issue. The embedded acceptance
// criteria, plan and notes sections are extracted from the description
// first so they never masquerade as description changes.
func (n *Normalizer) NormalizeRemote(issue api.Issue) Payload {
	sections := ParseDescription(issue.Description)
	return Payload{
		Title:              normalizeText(issue.Summary),
		Description:        normalizeText(sections.Body),
		Status:             n.CanonicalStatus(issue.Status),
		Priority:           n.CanonicalPriority(issue.Priority),
		Assignee:           n.canonicalAssignee(issue.Assignee),
		Labels:             normalizeLabels(issue.Labels),
		AcceptanceCriteria: normalizeCriteria(sections.AcceptanceCriteria),
	}
}

// Hash returns the stable hex digest of a payload. Fields are serialized
// with sorted keys so the digest never depends on struct layout.
func Hash(p Payload) string {
	labels := p.Labels
	if labels == nil {
		labels = []string{}
	}
	criteria := p.AcceptanceCriteria
	if criteria == nil {
		criteria = []api.Criterion{}
	}
	fields := map[string]interface{}{
		"title":              p.Title,
		"description":        p.Description,
		"status":             p.Status,
		"priority":           p.Priority,
		"assignee":           p.Assignee,
		"labels":             labels,
		"acceptanceCriteria": criteria,
	}
	// Map keys marshal in sorted order, which is what makes this stable.
	data, err := json.Marshal(fields)
	if err != nil {
		// Only reachable for unmarshalable values, which Payload never holds.
		logging.Error("Normalizer", err, "payload serialization failed")
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalStatus maps a remote status name back to the canonical local
// status using the configured statusMapping. Unknown names are lowercased
// and logged; the pull path decides what to do with them.
func (n *Normalizer) CanonicalStatus(remoteStatus string) string {
	trimmed := strings.TrimSpace(remoteStatus)
	// Sorted iteration keeps the result stable when a remote status name
	// appears under more than one local status.
	for _, localStatus := range sortedKeys(n.cfg.StatusMapping) {
		for _, name := range n.cfg.StatusMapping[localStatus] {
			if strings.EqualFold(name, trimmed) {
				return localStatus
			}
		}
	}
	if trimmed != "" {
		logging.Warn("Normalizer", "Remote status %q has no statusMapping entry", remoteStatus)
	}
	return strings.ToLower(trimmed)
}

// CanonicalPriority maps a remote priority name to high, medium or low using
// the configured priorityMapping. Unknown names default to medium.
func (n *Normalizer) CanonicalPriority(remotePriority string) string {
	trimmed := strings.TrimSpace(remotePriority)
	if trimmed == "" {
		return "medium"
	}
	for _, localPriority := range sortedKeys(n.cfg.PriorityMapping) {
		for _, name := range n.cfg.PriorityMapping[localPriority] {
			if strings.EqualFold(name, trimmed) {
				return localPriority
			}
		}
	}
	logging.Warn("Normalizer", "Remote priority %q has no priorityMapping entry, defaulting to medium", remotePriority)
	return "medium"
}

// RemotePriorityName picks the remote priority name to push for a local
// priority: the first entry in the configured list, so projects can prefer
// a particular alias. Unknown local priorities fall back to the raw value.
func (n *Normalizer) RemotePriorityName(localPriority, projectKey string) string {
	names := n.cfg.RemotePrioritiesFor(normalizePriorityWord(localPriority), projectKey)
	if len(names) > 0 {
		return names[0]
	}
	return localPriority
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// canonicalAssignee maps a remote user identifier back to the local user
// when a configured mapping covers it, otherwise lowercases it.
func (n *Normalizer) canonicalAssignee(remoteAssignee string) string {
	trimmed := strings.TrimSpace(remoteAssignee)
	if trimmed == "" {
		return ""
	}
	for localUser, remoteID := range n.cfg.AssigneeMapping {
		if strings.EqualFold(remoteID, trimmed) {
			return normalizeAssignee(localUser)
		}
	}
	for localUser, remoteID := range n.cfg.AutoMappedAssignees {
		if _, explicit := n.cfg.AssigneeMapping[localUser]; explicit {
			continue
		}
		if strings.EqualFold(remoteID, trimmed) {
			return normalizeAssignee(localUser)
		}
	}
	return strings.ToLower(trimmed)
}

func normalizeText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

func normalizeAssignee(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

func normalizePriorityWord(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return "high"
	case "low":
		return "low"
	case "medium", "":
		return "medium"
	default:
		return "medium"
	}
}

func normalizeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func normalizeCriteria(criteria []api.Criterion) []api.Criterion {
	out := make([]api.Criterion, 0, len(criteria))
	for _, c := range criteria {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		out = append(out, api.Criterion{Text: text, Checked: c.Checked})
	}
	return out
}
