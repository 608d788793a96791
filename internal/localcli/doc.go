// Package localcli is the adapter for the owning task CLI. All reads and
// mutations of task records go through subprocess invocations with the
// CLI's stable --plain output; the engine never edits a task file body
// itself.
package localcli
