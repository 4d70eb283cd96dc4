package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Value is anything a cache entry can hold. CloneValue must return a deep
// copy: the store clones on every read and write so an in-flight render
// always observes a point-in-time-consistent snapshot, never a value another
// mutation is rewriting (copy-on-write).
type Value interface {
	CloneValue() Value
}

// Snapshot is the externally visible state of one entry. Exists is false for
// an absent entry so a rollback can restore absence exactly.
type Snapshot struct {
	Value     Value
	FetchedAt time.Time
	IsStale   bool
	Exists    bool
}

type entry struct {
	value     Value
	fetchedAt time.Time
	isStale   bool
}

// Store is the entity cache: the only mutable shared resource in the sync
// layer. All cached values are exclusively owned by the store; consumers get
// clones. A single mutex guards all entries (distinct keys never contend
// logically, but key-level locking buys nothing at this cache's write rates),
// and per-key generation counters implement fetch cancellation: a fetch that
// resolves after its generation was bumped is discarded without touching
// state, closing the stale-write-after-unsubscribe hazard.
//
// Retention is handled by an expirable LRU: entries unread past the retention
// window, or beyond the size cap, are evicted least-recently-used first.
//
// gens lives under its own lock because the LRU's eviction callback runs both
// inside locked store operations and on the LRU's background expiry
// goroutine. Lock order is always mu before genMu.
type Store struct {
	mu      sync.Mutex
	entries *expirable.LRU[Key, *entry]

	genMu sync.Mutex
	gens  map[Key]uint64

	logger *slog.Logger
}

// NewStore creates an entity cache holding at most size entries, each
// retained for at most the given window since last touch.
func NewStore(size int, retention time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		gens:   make(map[Key]uint64),
		logger: logger,
	}
	s.entries = expirable.NewLRU[Key, *entry](size, func(key Key, _ *entry) {
		// Generations only matter while an entry (or an in-flight fetch for
		// it) is live; dropping them with the entry bounds the map.
		s.genMu.Lock()
		delete(s.gens, key)
		s.genMu.Unlock()
	}, retention)
	return s
}

func (s *Store) gen(key Key) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[key]
}

func (s *Store) bumpGen(key Key) {
	s.genMu.Lock()
	s.gens[key]++
	s.genMu.Unlock()
}

// Get returns a snapshot of the entry at key. The returned value is a clone;
// mutating it never affects the cache.
func (s *Store) Get(key Key) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(key)
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(e), true
}

// TakeSnapshot returns the entry state whether or not it exists. Used by the
// mutation pipeline to capture pre-mutation state for exact rollback.
func (s *Store) TakeSnapshot(key Key) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(key)
	if !ok {
		return Snapshot{Exists: false}
	}
	return snapshotOf(e)
}

// Restore puts an entry back into the exact state captured by TakeSnapshot,
// including absence. It also bumps the key's generation so any fetch issued
// between snapshot and restore cannot land on the rolled-back state.
func (s *Store) Restore(key Key, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpGen(key)
	if !snap.Exists {
		s.entries.Remove(key)
		return
	}
	s.entries.Add(key, &entry{
		value:     snap.Value.CloneValue(),
		fetchedAt: snap.FetchedAt,
		isStale:   snap.IsStale,
	})
}

// BeginFetch registers intent to fetch for key and returns the current
// generation token. The matching CompleteFetch only lands if no overwrite,
// cancellation, or restore intervened.
func (s *Store) BeginFetch(key Key) uint64 {
	return s.gen(key)
}

// CompleteFetch stores a freshly fetched value if gen is still current.
// Returns false when the fetch was cancelled; the value is discarded and
// cache state is untouched.
func (s *Store) CompleteFetch(key Key, gen uint64, v Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen(key) != gen {
		s.logger.Debug("stale fetch discarded", "key", key)
		return false
	}
	s.entries.Add(key, &entry{
		value:     v.CloneValue(),
		fetchedAt: time.Now().UTC(),
	})
	return true
}

// CancelFetch invalidates every in-flight fetch for key. Called when a
// mutation is about to overwrite the key and when a consumer unsubscribes.
func (s *Store) CancelFetch(key Key) {
	s.bumpGen(key)
}

// Overwrite applies an optimistic value. In-flight fetches for the key are
// cancelled first so a stale refetch cannot clobber the optimistic state.
func (s *Store) Overwrite(key Key, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpGen(key)
	fetchedAt := time.Now().UTC()
	if prev, ok := s.entries.Peek(key); ok {
		fetchedAt = prev.fetchedAt
	}
	s.entries.Add(key, &entry{
		value:     v.CloneValue(),
		fetchedAt: fetchedAt,
	})
}

// MarkStale flags the entry for lazy refresh: the value stays readable but
// the next read-through refetches. A missing entry is a no-op (nothing to
// invalidate; the next read fetches anyway).
func (s *Store) MarkStale(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Peek(key)
	if !ok {
		return
	}
	e.isStale = true
}

// MarkStalePrefix flags every entry whose key belongs to surface. Used for
// dependent-key invalidation that spans viewers (e.g. all feed filters).
func (s *Store) MarkStalePrefix(surface string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.entries.Keys() {
		if key.Prefix(surface) {
			if e, ok := s.entries.Peek(key); ok {
				e.isStale = true
			}
		}
	}
}

// Delete removes the entry at key.
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpGen(key)
	s.entries.Remove(key)
}

// Clear drops every entry. Used on account deletion and sign-out.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Purge()
	s.logger.Info("entity cache cleared")
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

func snapshotOf(e *entry) Snapshot {
	return Snapshot{
		Value:     e.value.CloneValue(),
		FetchedAt: e.fetchedAt,
		IsStale:   e.isStale,
		Exists:    true,
	}
}
