package config

// ConflictStrategy selects how the reconciler resolves conflicting mappings.
type ConflictStrategy string

const (
	// StrategyPreferLocal resolves every conflicting field with the local value.
	StrategyPreferLocal ConflictStrategy = "prefer-local"
	// StrategyPreferRemote resolves every conflicting field with the remote value.
	StrategyPreferRemote ConflictStrategy = "prefer-remote"
	// StrategyPrompt drives the interactive field-by-field resolver.
	StrategyPrompt ConflictStrategy = "prompt"
	// StrategyManual marks the mapping for manual follow-up without touching either side.
	StrategyManual ConflictStrategy = "manual"
)

// Valid reports whether s is a known conflict strategy.
func (s ConflictStrategy) Valid() bool {
	switch s {
	case StrategyPreferLocal, StrategyPreferRemote, StrategyPrompt, StrategyManual:
		return true
	}
	return false
}

// Config is the authoritative configuration document, persisted as
// config.json inside the workspace state directory.
type Config struct {
	// ProjectKey is the default Jira project for created issues and JQL scoping.
	ProjectKey string `json:"projectKey,omitempty"`
	// IssueType is the default issue type for created issues.
	IssueType string `json:"issueType,omitempty"`
	// JQLFilter scopes import and watch queries.
	JQLFilter string `json:"jqlFilter,omitempty"`

	// StatusMapping maps a local status to the ordered list of acceptable
	// remote statuses. The first entry is preferred when pushing.
	StatusMapping map[string][]string `json:"statusMapping,omitempty"`
	// StatusMappingOverrides holds per-project status mappings that take
	// precedence over StatusMapping.
	StatusMappingOverrides map[string]map[string][]string `json:"statusMappingOverrides,omitempty"`

	// PriorityMapping maps a local priority (high, medium, low) to the
	// ordered list of acceptable remote priority names.
	PriorityMapping map[string][]string `json:"priorityMapping,omitempty"`
	// PriorityMappingOverrides holds per-project priority mappings.
	PriorityMappingOverrides map[string]map[string][]string `json:"priorityMappingOverrides,omitempty"`

	// AssigneeMapping maps a local user to a remote user identifier.
	// Entries here are explicit and always win over auto-mapped ones.
	AssigneeMapping map[string]string `json:"assigneeMapping,omitempty"`
	// AutoMappedAssignees holds assignee pairs discovered by fuzzy matching.
	AutoMappedAssignees map[string]string `json:"autoMappedAssignees,omitempty"`

	// ConflictStrategy is the default conflict resolution strategy.
	ConflictStrategy ConflictStrategy `json:"conflictStrategy,omitempty"`

	// SyncInterval is the watch-mode polling interval (Go duration string).
	SyncInterval string `json:"syncInterval,omitempty"`
	// BatchConcurrency bounds concurrent reconciliations per cycle.
	BatchConcurrency int `json:"batchConcurrency,omitempty"`

	// TaskCommand is the local task CLI binary.
	TaskCommand string `json:"taskCommand,omitempty"`
	// TasksDir is the directory holding local task markdown files.
	TasksDir string `json:"tasksDir,omitempty"`

	// MCPCommand is the external MCP server binary, with arguments.
	MCPCommand []string `json:"mcpCommand,omitempty"`
	// FallbackToDocker enables the containerized MCP transport when the
	// external command fails to connect.
	FallbackToDocker bool `json:"fallbackToDocker,omitempty"`
	// RateLimitPerSecond throttles remote tool calls. Zero means default.
	RateLimitPerSecond float64 `json:"rateLimitPerSecond,omitempty"`

	// SyncPlan mirrors the implementation plan into the remote description.
	SyncPlan bool `json:"syncPlan,omitempty"`
	// SyncNotes mirrors the implementation notes into the remote description.
	SyncNotes bool `json:"syncNotes,omitempty"`
}

// ResolveAssignee looks up the remote identifier for a local user.
// Explicit entries shadow auto-mapped ones.
func (c *Config) ResolveAssignee(localUser string) (string, bool) {
	if v, ok := c.AssigneeMapping[localUser]; ok {
		return v, true
	}
	if v, ok := c.AutoMappedAssignees[localUser]; ok {
		return v, true
	}
	return "", false
}

// RemoteStatusesFor returns the acceptable remote statuses for a local
// status, honoring per-project overrides.
func (c *Config) RemoteStatusesFor(localStatus, projectKey string) []string {
	if projectKey != "" {
		if byStatus, ok := c.StatusMappingOverrides[projectKey]; ok {
			if names, ok := byStatus[localStatus]; ok {
				return names
			}
		}
	}
	return c.StatusMapping[localStatus]
}

// RemotePrioritiesFor returns the acceptable remote priority names for a
// local priority, honoring per-project overrides.
func (c *Config) RemotePrioritiesFor(localPriority, projectKey string) []string {
	if projectKey != "" {
		if byPrio, ok := c.PriorityMappingOverrides[projectKey]; ok {
			if names, ok := byPrio[localPriority]; ok {
				return names
			}
		}
	}
	return c.PriorityMapping[localPriority]
}
