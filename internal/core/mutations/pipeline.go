package mutations

import (
	"context"
	"log/slog"

	"Driftline/internal/core/cache"
)

// Txn gives a mutation scoped access to the entity cache during its apply
// and reconcile phases. Reads return clones; writes go through optimistic
// overwrite, which cancels in-flight fetches for the key first.
type Txn struct {
	store *cache.Store
}

// Get returns a clone of the cached value at key.
func (t *Txn) Get(key cache.Key) (cache.Value, bool) {
	snap, ok := t.store.Get(key)
	if !ok {
		return nil, false
	}
	return snap.Value, true
}

// Set overwrites the cached value at key.
func (t *Txn) Set(key cache.Key, v cache.Value) {
	t.store.Overwrite(key, v)
}

// Mutation is the generic shape every optimistic write follows. Keys must
// name every cache key Apply or Reconcile touches; the pipeline snapshots
// exactly those, and rollback restores exactly those.
type Mutation struct {
	Name string

	// Keys the mutation overwrites (snapshotted for rollback).
	Keys []cache.Key

	// Apply performs the synchronous optimistic transformation.
	Apply func(tx *Txn)

	// Dispatch performs the remote write(s). Its result is handed to
	// Reconcile on success and returned to the caller.
	Dispatch func(ctx context.Context) (any, error)

	// Reconcile replaces optimistic state with server-confirmed state. May
	// be nil when the optimistic value is already exact (pure toggles).
	Reconcile func(tx *Txn, result any)

	// StaleKeys are dependent keys marked stale after success, refreshed
	// lazily on next read.
	StaleKeys []cache.Key

	// StaleSurfaces are key prefixes marked stale after success (e.g.
	// "feed" for every cached feed filter).
	StaleSurfaces []string
}

// Pipeline orchestrates optimistic writes against the entity cache and the
// remote service:
//
//	cancel → snapshot → apply → dispatch → reconcile | rollback
//
// Rollback is all-or-nothing: on any dispatch failure every snapshotted key
// is restored verbatim to its pre-mutation state, temp entities included.
// Failures are never retried here; a higher layer may resubmit the whole
// mutation as a brand-new attempt.
//
// Mutations on distinct keys are independent; two in-flight mutations on the
// same key reconcile in arrival order (last reconciliation wins), which can
// reorder relative to submission. That weak ordering is an accepted
// trade-off of this layer, not a defect.
type Pipeline struct {
	store     *cache.Store
	logger    *slog.Logger
	staleHook func(cache.Key)
}

// NewPipeline creates a mutation pipeline over the entity cache.
func NewPipeline(store *cache.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:  store,
		logger: logger,
	}
}

// SetStaleHook registers a callback invoked for each key marked stale after
// a successful mutation. The UI layer uses it to refetch keys backing a
// currently-visible view immediately; everything else refreshes lazily.
func (p *Pipeline) SetStaleHook(hook func(cache.Key)) {
	p.staleHook = hook
}

// Run executes one mutation end to end. The returned value is Dispatch's
// result. On failure the returned error follows the backend taxonomy and
// cache state deep-equals its pre-mutation snapshot.
func (p *Pipeline) Run(ctx context.Context, m Mutation) (any, error) {
	// 1. Cancel in-flight refreshes so a stale refetch cannot clobber the
	// optimistic value once we write it.
	for _, key := range m.Keys {
		p.store.CancelFetch(key)
	}

	// 2. Snapshot current state of every declared key.
	snapshots := make(map[cache.Key]cache.Snapshot, len(m.Keys))
	for _, key := range m.Keys {
		snapshots[key] = p.store.TakeSnapshot(key)
	}

	// 3. Apply the optimistic transformation synchronously.
	tx := &Txn{store: p.store}
	if m.Apply != nil {
		m.Apply(tx)
	}

	// 4. Dispatch the remote write.
	result, err := m.Dispatch(ctx)
	if err != nil {
		// 6. Roll back every snapshot verbatim. All-or-nothing.
		for _, key := range m.Keys {
			p.store.Restore(key, snapshots[key])
		}
		p.logger.Warn("mutation rolled back",
			"mutation", m.Name,
			"keys", len(m.Keys),
			"error", err)
		return nil, err
	}

	// 5. Reconcile optimistic state with the server-confirmed result and
	// mark dependents stale (lazy refresh).
	if m.Reconcile != nil {
		m.Reconcile(tx, result)
	}
	for _, key := range m.StaleKeys {
		p.store.MarkStale(key)
		if p.staleHook != nil {
			p.staleHook(key)
		}
	}
	for _, surface := range m.StaleSurfaces {
		p.store.MarkStalePrefix(surface)
	}

	p.logger.Info("mutation confirmed", "mutation", m.Name)
	return result, nil
}
