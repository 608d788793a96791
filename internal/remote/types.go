package remote

import "tasksync/internal/api"

// Re-export the record types for convenience so callers of the adapter's
// high-level wrappers don't need to import api directly.
type (
	Issue      = api.Issue
	Transition = api.Transition
	User       = api.User
	Project    = api.Project
)
