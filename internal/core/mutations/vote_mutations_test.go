package mutations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Driftline/internal/backend"
	"Driftline/internal/backend/backendtest"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/records"
	"Driftline/internal/core/votes"
)

func newTestService(t *testing.T) (*Service, *cache.Store, *backendtest.Fake) {
	t.Helper()
	store := cache.NewStore(128, time.Minute, nil)
	fake := backendtest.NewFake()
	pipeline := NewPipeline(store, nil)
	return NewService(pipeline, store, fake, nil), store, fake
}

func seedFeed(store *cache.Store, viewerID string, posts ...*records.Post) {
	snap := &feeds.Snapshot{Pages: [][]*records.Post{posts}}
	for _, f := range feedFilters {
		store.Overwrite(cache.FeedKey(f, viewerID), snap)
	}
}

func testPost(id, owner string, score int) *records.Post {
	return &records.Post{
		ID:        id,
		OwnerID:   owner,
		Title:     "t",
		VoteScore: score,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestToggleVote_InsertMovesScoreAndReconciles(t *testing.T) {
	svc, store, fake := newTestService(t)
	seedFeed(store, "alice", testPost("p1", "bob", 3))

	resp, err := svc.ToggleVote(context.Background(), ToggleVoteRequest{
		ViewerID:  "alice",
		TargetID:  "p1",
		Direction: records.VoteUp,
	})
	require.NoError(t, err)
	assert.Equal(t, votes.ActionInsert, resp.Action)

	// Optimistic score applied in every cached feed filter.
	snap, _ := store.Get(cache.FeedKey("hot", "alice"))
	assert.Equal(t, 4, snap.Value.(*feeds.Snapshot).FindPost("p1").VoteScore)

	// One insert dispatched.
	calls := fake.WriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, backend.OpInsert, calls[0].Op)

	// Vote state carries the server-confirmed record, not the temp one.
	stateSnap, _ := store.Get(cache.VoteStateKey("alice"))
	vote := stateSnap.Value.(*votes.State).Get("p1")
	require.NotNil(t, vote)
	assert.False(t, records.IsTempID(vote.ID))
}

func TestToggleVote_SameDirectionRemoves(t *testing.T) {
	svc, store, fake := newTestService(t)
	seedFeed(store, "alice", testPost("p1", "bob", 3))
	fake.Seed(records.CollectionVotes, &records.Vote{
		ID: "v1", TargetID: "p1", UserID: "alice",
		Direction: records.VoteUp, CreatedAt: time.Now().UTC(),
	})

	resp, err := svc.ToggleVote(context.Background(), ToggleVoteRequest{
		ViewerID:  "alice",
		TargetID:  "p1",
		Direction: records.VoteUp,
	})
	require.NoError(t, err)
	assert.Equal(t, votes.ActionDelete, resp.Action)

	snap, _ := store.Get(cache.FeedKey("new", "alice"))
	assert.Equal(t, 2, snap.Value.(*feeds.Snapshot).FindPost("p1").VoteScore)

	calls := fake.WriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, backend.OpDelete, calls[0].Op)

	stateSnap, _ := store.Get(cache.VoteStateKey("alice"))
	assert.Nil(t, stateSnap.Value.(*votes.State).Get("p1"))
}

func TestToggleVote_ReversalIsSingleUpdateMovingScoreByTwo(t *testing.T) {
	svc, store, fake := newTestService(t)
	seedFeed(store, "alice", testPost("p1", "bob", -1))
	fake.Seed(records.CollectionVotes, &records.Vote{
		ID: "v1", TargetID: "p1", UserID: "alice",
		Direction: records.VoteDown, CreatedAt: time.Now().UTC(),
	})

	resp, err := svc.ToggleVote(context.Background(), ToggleVoteRequest{
		ViewerID:  "alice",
		TargetID:  "p1",
		Direction: records.VoteUp,
	})
	require.NoError(t, err)
	assert.Equal(t, votes.ActionUpdate, resp.Action)

	// -1 straight to +1, never through 0.
	snap, _ := store.Get(cache.FeedKey("top", "alice"))
	assert.Equal(t, 1, snap.Value.(*feeds.Snapshot).FindPost("p1").VoteScore)

	calls := fake.WriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, backend.OpUpdate, calls[0].Op)
	assert.Equal(t, records.VoteUp, calls[0].Record.(*records.Vote).Direction)
}

func TestToggleVote_FailureRollsBackExactly(t *testing.T) {
	svc, store, fake := newTestService(t)
	seedFeed(store, "alice", testPost("p1", "bob", 3))
	fake.WriteErr = &backend.TransportError{Op: "write", Err: context.DeadlineExceeded}

	before, _ := store.Get(cache.FeedKey("hot", "alice"))

	_, err := svc.ToggleVote(context.Background(), ToggleVoteRequest{
		ViewerID:  "alice",
		TargetID:  "p1",
		Direction: records.VoteUp,
	})
	require.Error(t, err)
	assert.True(t, backend.IsTransport(err))

	after, _ := store.Get(cache.FeedKey("hot", "alice"))
	assert.Equal(t, before.Value, after.Value)

	// Vote state also restored: no phantom vote.
	stateSnap, _ := store.Get(cache.VoteStateKey("alice"))
	assert.Nil(t, stateSnap.Value.(*votes.State).Get("p1"))
}

func TestToggleVote_Validation(t *testing.T) {
	svc, _, fake := newTestService(t)

	_, err := svc.ToggleVote(context.Background(), ToggleVoteRequest{TargetID: "p1", Direction: records.VoteUp})
	assert.ErrorIs(t, err, ErrViewerRequired)

	_, err = svc.ToggleVote(context.Background(), ToggleVoteRequest{ViewerID: "a", Direction: records.VoteUp})
	assert.ErrorIs(t, err, ErrTargetRequired)

	_, err = svc.ToggleVote(context.Background(), ToggleVoteRequest{ViewerID: "a", TargetID: "p1", Direction: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidDirection)

	// Validation failures never dispatch.
	assert.Empty(t, fake.WriteCalls())
}
