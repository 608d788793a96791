package reconcile

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"tasksync/internal/normalize"
	"tasksync/internal/state"
	"tasksync/internal/store"
)

// MappingIDs lists the local IDs of every known mapping, sorted.
func (r *Reconciler) MappingIDs() ([]string, error) {
	mappings, err := r.store.ListMappings()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.LocalID)
	}
	sort.Strings(ids)
	return ids, nil
}

// StatusRow is one mapping's classification for display.
type StatusRow struct {
	LocalID   string
	RemoteKey string
	Title     string
	State     state.SyncState
	Err       error
}

// Status classifies every selected mapping without mutating anything.
func (r *Reconciler) Status(ctx context.Context, ids []string) ([]StatusRow, error) {
	mappings, err := r.selectMappings(ids)
	if err != nil {
		return nil, err
	}

	sem := semaphore.NewWeighted(int64(r.cfg.Concurrency()))
	rows := make([]StatusRow, len(mappings))
	var wg sync.WaitGroup
	for i, mapping := range mappings {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, m store.Mapping) {
			defer wg.Done()
			defer sem.Release(1)
			row := StatusRow{LocalID: m.LocalID, RemoteKey: m.RemoteKey}
			p, err := r.loadPair(ctx, m)
			if err != nil {
				row.Err = err
			} else {
				row.Title = p.task.Title
				row.State = p.state
			}
			rows[i] = row
		}(i, mapping)
	}
	wg.Wait()

	sort.Slice(rows, func(i, j int) bool { return rows[i].LocalID < rows[j].LocalID })
	return rows, ctx.Err()
}

// View is the material for a side-by-side field comparison of one mapping.
type View struct {
	LocalID   string
	RemoteKey string
	RemoteURL string
	State     state.SyncState
	Local     normalize.Payload
	Remote    normalize.Payload
}

// Inspect loads one mapping for display.
func (r *Reconciler) Inspect(ctx context.Context, localID string) (View, error) {
	mapping, err := r.store.GetMapping(localID)
	if err != nil {
		return View{}, err
	}
	p, err := r.loadPair(ctx, mapping)
	if err != nil {
		return View{}, err
	}
	return View{
		LocalID:   mapping.LocalID,
		RemoteKey: mapping.RemoteKey,
		RemoteURL: r.remote.BrowseURL(mapping.RemoteKey),
		State:     p.state,
		Local:     p.localPayload,
		Remote:    p.remotePayload,
	}, nil
}
