package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"tasksync/internal/api"
	"tasksync/pkg/logging"
)

// Verb patterns for the third matching pass. Trackers often name
// transitions after the action rather than the destination status.
var transitionVerbs = map[string][]string{
	"done":        {"resolve", "close", "done", "complete", "finish"},
	"in-progress": {"start", "begin", "progress"},
}

// auditCommentTemplate renders the comment attached to every automated
// transition so the change is attributable in the tracker's history.
const auditCommentTemplate = `Status changed to {{ .Status | title }} by tasksync at {{ .Timestamp }}.`

var auditTemplate = template.Must(
	template.New("audit").Funcs(sprig.FuncMap()).Parse(auditCommentTemplate))

func renderAuditComment(targetStatus string, now time.Time) string {
	var buf bytes.Buffer
	err := auditTemplate.Execute(&buf, map[string]string{
		"Status":    targetStatus,
		"Timestamp": now.Format(time.RFC3339),
	})
	if err != nil {
		// The template is static; execution cannot realistically fail, but
		// a transition must never be blocked by its comment.
		return fmt.Sprintf("Status changed to %s by tasksync.", targetStatus)
	}
	return buf.String()
}

// transitionStatus moves an issue toward the remote status family mapped
// from the canonical local status. A missing transition logs the available
// ones and returns nil so the rest of the push proceeds.
func (r *Reconciler) transitionStatus(ctx context.Context, key, localStatus string) error {
	acceptable := r.cfg.RemoteStatusesFor(localStatus, r.cfg.ProjectKey)
	if len(acceptable) == 0 {
		logging.Warn(subsystem, "no remote statuses configured for local status %q, leaving %s as is", localStatus, key)
		return nil
	}

	transitions, err := r.remote.GetTransitions(ctx, key)
	if err != nil {
		return fmt.Errorf("listing transitions for %s: %w", key, err)
	}

	match, ok := matchTransition(transitions, localStatus, acceptable)
	if !ok {
		logging.Warn(subsystem, "no transition on %s reaches any of %v (available: %s)",
			key, acceptable, transitionNames(transitions))
		return nil
	}

	comment := renderAuditComment(acceptable[0], time.Now().UTC())
	if err := r.remote.TransitionIssue(ctx, key, match.ID, comment); err != nil {
		return fmt.Errorf("transitioning %s via %q: %w", key, match.Name, err)
	}
	logging.Info(subsystem, "transitioned %s via %q", key, match.Name)
	return nil
}

// matchTransition picks the transition reaching one of the acceptable
// remote statuses. Three passes: exact destination, case-insensitive
// destination, then transition-name heuristics (verb families, finally a
// substring of the target).
func matchTransition(transitions []api.Transition, localStatus string, acceptable []string) (api.Transition, bool) {
	for _, want := range acceptable {
		for _, tr := range transitions {
			if tr.ToName == want {
				return tr, true
			}
		}
	}
	for _, want := range acceptable {
		for _, tr := range transitions {
			if strings.EqualFold(tr.ToName, want) {
				return tr, true
			}
		}
	}
	verbKey := strings.ReplaceAll(strings.ToLower(localStatus), " ", "-")
	if verbs, ok := transitionVerbs[verbKey]; ok {
		for _, tr := range transitions {
			name := strings.ToLower(tr.Name)
			for _, verb := range verbs {
				if strings.Contains(name, verb) {
					return tr, true
				}
			}
		}
	}
	for _, want := range acceptable {
		for _, tr := range transitions {
			if strings.Contains(strings.ToLower(tr.Name), strings.ToLower(want)) {
				return tr, true
			}
		}
	}
	return api.Transition{}, false
}

func transitionNames(transitions []api.Transition) string {
	names := make([]string, 0, len(transitions))
	for _, tr := range transitions {
		names = append(names, tr.Name)
	}
	return strings.Join(names, ", ")
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
