// Package watcher runs unattended sync cycles on an interval. Mappings are
// reconciled in bounded batches, failing cycles back off exponentially
// (with a longer base for rate limiting), filesystem changes in the tasks
// directory trigger early cycles, and under systemd the loop reports
// readiness and watchdog liveness.
package watcher
