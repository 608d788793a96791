// Package reconcile is the sync engine. It classifies each mapping against
// its base snapshots and drives the push, pull, sync and import paths over
// the local CLI and remote tracker adapters with bounded parallelism.
// Mappings are disjoint units: a per-mapping failure is logged to the op
// log and the batch continues. Snapshots are only rewritten after a
// successful operation, so a crash mid-operation reclassifies safely on
// the next run.
package reconcile
