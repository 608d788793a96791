// Package logging provides the leveled, subsystem-tagged logger used across
// tasksync. It is a thin wrapper over log/slog with a runtime-adjustable
// level so commands can implement --verbose without rebuilding handlers.
package logging
