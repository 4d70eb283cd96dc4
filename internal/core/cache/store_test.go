package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testValue is a minimal deep-copied cache value.
type testValue struct {
	N     int
	Items []string
}

func (v *testValue) CloneValue() Value {
	c := &testValue{N: v.N}
	if v.Items != nil {
		c.Items = make([]string, len(v.Items))
		copy(c.Items, v.Items)
	}
	return c
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(128, time.Minute, nil)
}

func TestStore_GetReturnsClone(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("feed", "hot", "viewer")
	s.Overwrite(key, &testValue{N: 1, Items: []string{"a"}})

	snap, ok := s.Get(key)
	require.True(t, ok)

	// Mutating the returned value must not leak into the cache.
	snap.Value.(*testValue).Items[0] = "mutated"

	again, _ := s.Get(key)
	assert.Equal(t, "a", again.Value.(*testValue).Items[0])
}

func TestStore_RestoreRoundTripsExactly(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("votes", "viewer")
	s.Overwrite(key, &testValue{N: 5, Items: []string{"x", "y"}})

	before := s.TakeSnapshot(key)
	s.Overwrite(key, &testValue{N: 99})
	s.Restore(key, before)

	after, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, before.Value, after.Value)
	assert.Equal(t, before.FetchedAt, after.FetchedAt)
}

func TestStore_RestoreAbsenceRemovesEntry(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("bookmarks", "viewer")

	before := s.TakeSnapshot(key)
	require.False(t, before.Exists)

	s.Overwrite(key, &testValue{N: 1})
	s.Restore(key, before)

	_, ok := s.Get(key)
	assert.False(t, ok)
}

func TestStore_CompleteFetchLandsWhenCurrent(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("comments", "p1", "viewer")

	gen := s.BeginFetch(key)
	assert.True(t, s.CompleteFetch(key, gen, &testValue{N: 7}))

	snap, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, 7, snap.Value.(*testValue).N)
	assert.False(t, snap.IsStale)
}

func TestStore_CancelledFetchIsDiscarded(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("comments", "p1", "viewer")
	s.Overwrite(key, &testValue{N: 1})

	gen := s.BeginFetch(key)
	s.CancelFetch(key)

	assert.False(t, s.CompleteFetch(key, gen, &testValue{N: 2}))

	snap, _ := s.Get(key)
	assert.Equal(t, 1, snap.Value.(*testValue).N)
}

func TestStore_OverwriteCancelsInFlightFetch(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("feed", "new", "viewer")

	gen := s.BeginFetch(key)
	// Optimistic mutation lands while the fetch is in flight.
	s.Overwrite(key, &testValue{N: 10})

	assert.False(t, s.CompleteFetch(key, gen, &testValue{N: 2}))

	snap, _ := s.Get(key)
	assert.Equal(t, 10, snap.Value.(*testValue).N)
}

func TestStore_RestoreCancelsInFlightFetch(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("feed", "new", "viewer")
	s.Overwrite(key, &testValue{N: 1})

	before := s.TakeSnapshot(key)
	gen := s.BeginFetch(key)
	s.Restore(key, before)

	assert.False(t, s.CompleteFetch(key, gen, &testValue{N: 2}))
}

func TestStore_MarkStaleKeepsValueReadable(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("blocklist", "viewer")
	s.Overwrite(key, &testValue{N: 3})

	s.MarkStale(key)

	snap, ok := s.Get(key)
	require.True(t, ok)
	assert.True(t, snap.IsStale)
	assert.Equal(t, 3, snap.Value.(*testValue).N)
}

func TestStore_MarkStalePrefixSpansViewers(t *testing.T) {
	s := newTestStore(t)
	s.Overwrite(FeedKey("hot", "alice"), &testValue{N: 1})
	s.Overwrite(FeedKey("new", "bob"), &testValue{N: 2})
	s.Overwrite(BookmarksKey("alice"), &testValue{N: 3})

	s.MarkStalePrefix("feed")

	a, _ := s.Get(FeedKey("hot", "alice"))
	b, _ := s.Get(FeedKey("new", "bob"))
	c, _ := s.Get(BookmarksKey("alice"))
	assert.True(t, a.IsStale)
	assert.True(t, b.IsStale)
	assert.False(t, c.IsStale)
}

func TestStore_OverwritePreservesFetchedAt(t *testing.T) {
	s := newTestStore(t)
	key := NewKey("feed", "hot", "viewer")

	gen := s.BeginFetch(key)
	require.True(t, s.CompleteFetch(key, gen, &testValue{N: 1}))
	fetched := s.TakeSnapshot(key).FetchedAt

	s.Overwrite(key, &testValue{N: 2})

	// Optimistic writes do not reset data age; the value is still as old as
	// its last fetch.
	assert.Equal(t, fetched, s.TakeSnapshot(key).FetchedAt)
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := newTestStore(t)
	s.Overwrite(NewKey("a"), &testValue{})
	s.Overwrite(NewKey("b"), &testValue{})

	s.Delete(NewKey("a"))
	_, ok := s.Get(NewKey("a"))
	assert.False(t, ok)

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestKey_Prefix(t *testing.T) {
	assert.True(t, FeedKey("hot", "v").Prefix("feed"))
	assert.True(t, CommentsKey("p1", "v").Prefix("comments"))
	assert.False(t, FeedKey("hot", "v").Prefix("fee"))
	assert.False(t, BookmarksKey("v").Prefix("feed"))
}
