package mapper

import (
	"tasksync/internal/api"
	"tasksync/pkg/logging"
)

// autoMapThreshold is the minimum name similarity accepted when pairing a
// remote display name with a local user automatically.
const autoMapThreshold = 0.6

// DiscoverAssignees pairs remote assignee names against the distinct local
// task assignees by Levenshtein similarity. Pairs at or above the threshold
// land in the config's auto-mapped set, never in the explicit one, and a
// local user with an explicit entry is left alone. Returns true when the
// config changed and should be persisted.
func (m *Mapper) DiscoverAssignees(localTasks []api.Task, remoteNames []string) bool {
	locals := distinctAssignees(localTasks)
	if len(locals) == 0 || len(remoteNames) == 0 {
		return false
	}

	changed := false
	for _, remoteName := range remoteNames {
		if remoteName == "" {
			continue
		}
		bestLocal, bestScore := "", 0.0
		for _, local := range locals {
			if score := NameSimilarity(local, remoteName); score > bestScore {
				bestLocal, bestScore = local, score
			}
		}
		if bestScore < autoMapThreshold {
			continue
		}
		if _, explicit := m.cfg.AssigneeMapping[bestLocal]; explicit {
			continue
		}
		if m.cfg.AutoMappedAssignees[bestLocal] == remoteName {
			continue
		}
		if m.cfg.AutoMappedAssignees == nil {
			m.cfg.AutoMappedAssignees = map[string]string{}
		}
		m.cfg.AutoMappedAssignees[bestLocal] = remoteName
		logging.Info(subsystem, "auto-mapped assignee %s to %s (score %.2f)", bestLocal, remoteName, bestScore)
		changed = true
	}
	return changed
}

func distinctAssignees(tasks []api.Task) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tasks {
		if t.Assignee == "" || seen[t.Assignee] {
			continue
		}
		seen[t.Assignee] = true
		out = append(out, t.Assignee)
	}
	return out
}
