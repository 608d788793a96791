// Package store is the durable persistence layer for task-to-issue
// mappings, per-side base snapshots, and the append-only operations audit
// log. Storage is one JSON file per mapping, one per (task, side) snapshot,
// and a JSON-lines op log, all under the workspace state directory.
package store
