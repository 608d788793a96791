package config

import "time"

const (
	// DefaultBatchConcurrency bounds concurrent reconciliations per cycle.
	DefaultBatchConcurrency = 10
	// DefaultSyncInterval is the watch-mode polling interval.
	DefaultSyncInterval = time.Minute
	// DefaultTaskCommand is the local task CLI binary name.
	DefaultTaskCommand = "task"
	// DefaultRateLimitPerSecond throttles remote tool calls.
	DefaultRateLimitPerSecond = 5.0
)

// GetDefaultConfig returns the baseline configuration used when no
// config.json exists yet. Status and priority mappings cover the common
// Jira cloud vocabulary; projects adjust them in config.json.
func GetDefaultConfig() Config {
	return Config{
		IssueType: "Task",
		StatusMapping: map[string][]string{
			"To Do":       {"To Do", "Open", "Backlog"},
			"In Progress": {"In Progress", "In Development"},
			"In Review":   {"In Review", "Code Review"},
			"Done":        {"Done", "Closed", "Resolved"},
		},
		PriorityMapping: map[string][]string{
			"high":   {"High", "Highest", "Critical"},
			"medium": {"Medium"},
			"low":    {"Low", "Lowest", "Minor"},
		},
		ConflictStrategy: StrategyPrompt,
		SyncInterval:     DefaultSyncInterval.String(),
		BatchConcurrency: DefaultBatchConcurrency,
		TaskCommand:      DefaultTaskCommand,
	}
}

// Interval parses the configured sync interval, falling back to the default
// on absence or a malformed value.
func (c *Config) Interval() time.Duration {
	if c.SyncInterval == "" {
		return DefaultSyncInterval
	}
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil || d <= 0 {
		return DefaultSyncInterval
	}
	return d
}

// Concurrency returns the effective batch concurrency.
func (c *Config) Concurrency() int {
	if c.BatchConcurrency <= 0 {
		return DefaultBatchConcurrency
	}
	return c.BatchConcurrency
}

// TaskBinary returns the effective local task CLI binary.
func (c *Config) TaskBinary() string {
	if c.TaskCommand == "" {
		return DefaultTaskCommand
	}
	return c.TaskCommand
}

// RateLimit returns the effective remote tool-call rate limit.
func (c *Config) RateLimit() float64 {
	if c.RateLimitPerSecond <= 0 {
		return DefaultRateLimitPerSecond
	}
	return c.RateLimitPerSecond
}
