// Package config owns the typed configuration document for tasksync: status,
// priority and assignee mappings, conflict strategy, sync knobs, and the
// credential tuple read from the environment. The document lives at
// .tasksync/config.json in the workspace and is read once per command
// invocation; only the conflict-strategy preference is ever rewritten, at
// explicit user request.
package config
