package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"

	"tasksync/internal/config"
	"tasksync/internal/reconcile"
	"tasksync/internal/remote"
	"tasksync/pkg/logging"
)

const subsystem = "watcher"

const (
	// DefaultBatchSize bounds reconciliations dispatched per batch.
	DefaultBatchSize = 10
	// transportBackoffBase seeds the backoff after transport-class errors.
	transportBackoffBase = 2 * time.Second
	// rateLimitBackoffBase seeds the backoff after rate-limit errors.
	rateLimitBackoffBase = 30 * time.Second
	// maxBackoff caps the exponential growth.
	maxBackoff = 5 * time.Minute
	// changeDebounce coalesces filesystem change bursts into one early
	// cycle.
	changeDebounce = 2 * time.Second
)

// Options configure the watch loop.
type Options struct {
	// Interval between cycles. Zero means the configured sync interval.
	Interval time.Duration
	// Strategy is the unattended conflict strategy. Prompt is rejected;
	// there is no terminal to prompt on.
	Strategy config.ConflictStrategy
	// BatchSize bounds reconciliations per concurrent batch.
	BatchSize int
	// StopOnError exits the loop after the first failing cycle.
	StopOnError bool
	// TasksDir, when set, is watched for file changes that trigger an
	// early cycle.
	TasksDir string
}

// Counters accumulate across cycles and are reported on exit.
type Counters struct {
	Cycles    int
	Synced    int
	Conflicts int
	Errors    int
}

// Watcher runs sync cycles on an interval until cancelled.
type Watcher struct {
	engine *reconcile.Reconciler
	opts   Options
}

// New validates the options and builds a watcher.
func New(engine *reconcile.Reconciler, opts Options) (*Watcher, error) {
	if opts.Strategy == config.StrategyPrompt {
		return nil, fmt.Errorf("the prompt strategy cannot run unattended, pick prefer-local, prefer-remote or manual")
	}
	if opts.Strategy != "" && !opts.Strategy.Valid() {
		return nil, fmt.Errorf("unknown conflict strategy %q", opts.Strategy)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Watcher{engine: engine, opts: opts}, nil
}

// Run loops until the context is cancelled or StopOnError triggers. The
// in-flight batch always finishes; cancellation is honored between
// batches. Returns the accumulated counters.
func (w *Watcher) Run(ctx context.Context) (Counters, error) {
	interval := w.opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	// Under systemd these report liveness; elsewhere they are no-ops.
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Debug(subsystem, "sd_notify unavailable: %v", err)
	} else if sent {
		logging.Debug(subsystem, "notified systemd readiness")
	}

	trigger, stopWatch := w.watchTasksDir(ctx)
	defer stopWatch()

	var counters Counters
	backoff := newBackoff()
	logging.Info(subsystem, "starting watch loop, interval %s", interval)

	for {
		summary := w.runCycle(ctx)
		counters.Cycles++
		counters.Synced += summary.Synced
		counters.Conflicts += summary.Conflicts
		counters.Errors += summary.Errors
		_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)

		wait := interval
		if summary.Failed() {
			wait = backoff.next(rateLimited(summary))
			logging.Warn(subsystem, "cycle had %d errors, backing off %s", summary.Errors, wait)
			if w.opts.StopOnError {
				return counters, fmt.Errorf("stopping after failing cycle (%d errors)", summary.Errors)
			}
		} else {
			backoff.reset()
			logging.Info(subsystem, "cycle %d: %d synced, %d conflicts", counters.Cycles, summary.Synced, summary.Conflicts)
		}

		select {
		case <-ctx.Done():
			return counters, nil
		case <-time.After(wait):
		case <-trigger:
			logging.Info(subsystem, "local change detected, starting early cycle")
		}
	}
}

// runCycle syncs every mapping in batches of BatchSize. Each batch is
// awaited before the next starts so a struggling tracker is never hit by
// the whole mapping set at once.
func (w *Watcher) runCycle(ctx context.Context) reconcile.Summary {
	ids, err := w.engine.MappingIDs()
	if err != nil {
		logging.Error(subsystem, err, "listing mappings failed")
		return reconcile.Summary{Errors: 1}
	}

	var total reconcile.Summary
	for start := 0; start < len(ids); start += w.opts.BatchSize {
		end := start + w.opts.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		summary, err := w.engine.Sync(ctx, reconcile.Options{
			IDs:      ids[start:end],
			Strategy: w.opts.Strategy,
		})
		mergeSummary(&total, summary)
		if err != nil || ctx.Err() != nil {
			// Context cancellation; report what completed.
			return total
		}
	}
	return total
}

// watchTasksDir wires a debounced filesystem trigger for early cycles.
// Returns a nil channel (never ready) when no directory is configured or
// the watch cannot be established.
func (w *Watcher) watchTasksDir(ctx context.Context) (<-chan struct{}, func()) {
	if w.opts.TasksDir == "" {
		return nil, func() {}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn(subsystem, "filesystem watch unavailable: %v", err)
		return nil, func() {}
	}
	if err := fsw.Add(w.opts.TasksDir); err != nil {
		logging.Warn(subsystem, "cannot watch %s: %v", w.opts.TasksDir, err)
		_ = fsw.Close()
		return nil, func() {}
	}

	trigger := make(chan struct{}, 1)
	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(changeDebounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logging.Warn(subsystem, "filesystem watch error: %v", err)
			}
		}
	}()
	return trigger, func() { _ = fsw.Close() }
}

// mergeSummary folds one batch into the cycle total. Outcomes ride along
// so rate-limit classification sees every batch, including a cancelled one.
func mergeSummary(total *reconcile.Summary, batch reconcile.Summary) {
	total.Outcomes = append(total.Outcomes, batch.Outcomes...)
	total.Synced += batch.Synced
	total.Conflicts += batch.Conflicts
	total.Errors += batch.Errors
}

// rateLimited reports whether any failed outcome in the summary was
// classified as rate limiting.
func rateLimited(summary reconcile.Summary) bool {
	for _, outcome := range summary.Outcomes {
		if outcome.Err != nil && remote.IsRateLimited(outcome.Err) {
			return true
		}
	}
	return false
}

// backoff doubles per consecutive failing cycle, capped, with a higher
// base for rate-limit errors.
type backoff struct {
	consecutive int
}

func newBackoff() *backoff {
	return &backoff{}
}

func (b *backoff) next(rateLimit bool) time.Duration {
	base := transportBackoffBase
	if rateLimit {
		base = rateLimitBackoffBase
	}
	wait := base << b.consecutive
	if wait > maxBackoff || wait <= 0 {
		wait = maxBackoff
	}
	b.consecutive++
	return wait
}

func (b *backoff) reset() {
	b.consecutive = 0
}
