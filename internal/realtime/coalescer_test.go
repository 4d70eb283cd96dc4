package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Driftline/internal/backend"
	"Driftline/internal/backend/backendtest"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/comments"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/records"
)

func newFeedStore(t *testing.T, viewers ...string) *cache.Store {
	t.Helper()
	store := cache.NewStore(128, time.Minute, nil)
	for _, viewer := range viewers {
		for _, filter := range []string{"new", "top", "hot"} {
			store.Overwrite(cache.FeedKey(filter, viewer), &feeds.Snapshot{})
		}
	}
	return store
}

func postNotification(actorID string) backend.Notification {
	return backend.Notification{
		Op:         backend.OpInsert,
		Collection: records.CollectionPosts,
		Record:     &records.Post{ID: "p1", OwnerID: actorID},
		ActorID:    actorID,
	}
}

func waitStale(t *testing.T, store *cache.Store, key cache.Key) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if snap, ok := store.Get(key); ok && snap.IsStale {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("key %s never went stale", key)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCoalescer_BurstCollapsesToOneInvalidation(t *testing.T) {
	store := newFeedStore(t, "alice")
	fake := backendtest.NewFake()

	var fired []cache.Key
	firedCh := make(chan cache.Key, 16)
	c := NewCoalescer(store, "alice", 50*time.Millisecond, nil)
	c.SetStaleHook(func(k cache.Key) { firedCh <- k })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := fake.Subscribe(ctx, records.CollectionPosts, backend.Predicate{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, sub)
	}()

	// Ten rapid remote posts inside one window.
	for i := 0; i < 10; i++ {
		fake.Publish(postNotification("bob"))
	}

	waitStale(t, store, cache.FeedKey("hot", "alice"))

	// Drain hook calls; the burst must produce one invalidation per feed
	// filter, not ten.
	timeout := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case k := <-firedCh:
			fired = append(fired, k)
		case <-timeout:
			break drain
		}
	}
	assert.Len(t, fired, 3)

	cancel()
	<-done
}

func TestCoalescer_DropsViewerEchoes(t *testing.T) {
	store := newFeedStore(t, "alice")
	fake := backendtest.NewFake()

	c := NewCoalescer(store, "alice", 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := fake.Subscribe(ctx, records.CollectionPosts, backend.Predicate{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, sub)
	}()

	// Alice's own write echoes back; her optimistic state must survive.
	fake.Publish(postNotification("alice"))
	time.Sleep(60 * time.Millisecond)

	snap, ok := store.Get(cache.FeedKey("hot", "alice"))
	require.True(t, ok)
	assert.False(t, snap.IsStale)

	cancel()
	<-done
}

func TestCoalescer_SharedModeWidensToPrefixes(t *testing.T) {
	// Without a viewer identity the coalescer serves a shared cache: every
	// viewer's feed goes stale, and echoes are not dropped.
	store := newFeedStore(t, "alice", "bob")
	fake := backendtest.NewFake()

	c := NewCoalescer(store, "", 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := fake.Subscribe(ctx, records.CollectionPosts, backend.Predicate{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, sub)
	}()

	fake.Publish(postNotification("alice"))

	waitStale(t, store, cache.FeedKey("hot", "alice"))
	waitStale(t, store, cache.FeedKey("new", "bob"))

	cancel()
	<-done
}

func TestCoalescer_CommentNotificationTargetsThread(t *testing.T) {
	store := newFeedStore(t, "alice")
	store.Overwrite(cache.CommentsKey("p1", "alice"), &comments.Thread{})

	fake := backendtest.NewFake()
	c := NewCoalescer(store, "alice", 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := fake.Subscribe(ctx, records.CollectionComments, backend.Predicate{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, sub)
	}()

	fake.Publish(backend.Notification{
		Op:         backend.OpInsert,
		Collection: records.CollectionComments,
		Record:     &records.Comment{ID: "c1", PostID: "p1", UserID: strPtr("bob")},
		ActorID:    "bob",
	})

	waitStale(t, store, cache.CommentsKey("p1", "alice"))
	waitStale(t, store, cache.FeedKey("hot", "alice"))

	cancel()
	<-done
}

func strPtr(s string) *string { return &s }
