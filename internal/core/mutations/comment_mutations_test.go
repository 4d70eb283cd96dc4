package mutations

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/comments"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/records"
)

func seedThread(store *cache.Store, postID, viewerID string, recs ...*records.Comment) cache.Key {
	key := cache.CommentsKey(postID, viewerID)
	store.Overwrite(key, &comments.Thread{Comments: recs})
	return key
}

func TestCreateComment_TempThenConfirmed(t *testing.T) {
	svc, store, fake := newTestService(t)
	seedFeed(store, "alice", testPost("p1", "bob", 0))
	threadKey := seedThread(store, "p1", "alice")

	resp, err := svc.CreateComment(context.Background(), CreateCommentRequest{
		ViewerID: "alice",
		PostID:   "p1",
		Content:  "  hello thread  ",
	})
	require.NoError(t, err)

	// The confirmed id is the server's, not a temp id.
	assert.False(t, records.IsTempID(resp.ID))

	// The thread holds exactly one comment, in the temp comment's slot,
	// carrying the confirmed id and trimmed content.
	snap, _ := store.Get(threadKey)
	thread := snap.Value.(*comments.Thread)
	require.Len(t, thread.Comments, 1)
	assert.Equal(t, resp.ID, thread.Comments[0].ID)
	assert.Equal(t, "hello thread", thread.Comments[0].Content)

	// Comment count bumped in cached feeds.
	feedSnap, _ := store.Get(cache.FeedKey("hot", "alice"))
	assert.Equal(t, 1, feedSnap.Value.(*feeds.Snapshot).FindPost("p1").CommentCount)

	calls := fake.WriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, backend.OpInsert, calls[0].Op)
}

func TestCreateComment_ReplyCarriesParent(t *testing.T) {
	svc, store, fake := newTestService(t)
	parent := "c-parent"
	seedThread(store, "p1", "alice", &records.Comment{
		ID: parent, PostID: "p1", UserID: strPtr("bob"),
		Content: "parent", CreatedAt: time.Now().UTC(),
	})

	_, err := svc.CreateComment(context.Background(), CreateCommentRequest{
		ViewerID: "alice",
		PostID:   "p1",
		ParentID: &parent,
		Content:  "reply",
	})
	require.NoError(t, err)

	calls := fake.WriteCalls()
	require.Len(t, calls, 1)
	written := calls[0].Record.(*records.Comment)
	require.NotNil(t, written.ParentID)
	assert.Equal(t, parent, *written.ParentID)
}

func TestCreateComment_RollbackRemovesTempComment(t *testing.T) {
	svc, store, fake := newTestService(t)
	seedFeed(store, "alice", testPost("p1", "bob", 0))
	threadKey := seedThread(store, "p1", "alice")
	fake.WriteErr = &backend.ValidationError{Message: "post is locked"}

	_, err := svc.CreateComment(context.Background(), CreateCommentRequest{
		ViewerID: "alice",
		PostID:   "p1",
		Content:  "hello",
	})
	require.Error(t, err)
	assert.Equal(t, "post is locked", backend.UserMessage(err))

	snap, _ := store.Get(threadKey)
	assert.Empty(t, snap.Value.(*comments.Thread).Comments)

	feedSnap, _ := store.Get(cache.FeedKey("new", "alice"))
	assert.Equal(t, 0, feedSnap.Value.(*feeds.Snapshot).FindPost("p1").CommentCount)
}

func TestCreateComment_ContentValidation(t *testing.T) {
	svc, _, fake := newTestService(t)

	_, err := svc.CreateComment(context.Background(), CreateCommentRequest{
		ViewerID: "alice", PostID: "p1", Content: "   ",
	})
	assert.ErrorIs(t, err, ErrContentEmpty)

	_, err = svc.CreateComment(context.Background(), CreateCommentRequest{
		ViewerID: "alice", PostID: "p1",
		Content: strings.Repeat("x", maxContentGraphemes+1),
	})
	assert.ErrorIs(t, err, ErrContentTooLong)

	assert.Empty(t, fake.WriteCalls())
}

func TestDeleteComment_BlanksInPlaceAndPreservesThreading(t *testing.T) {
	svc, store, fake := newTestService(t)
	seedFeed(store, "alice", func() *records.Post {
		p := testPost("p1", "bob", 0)
		p.CommentCount = 2
		return p
	}())
	threadKey := seedThread(store, "p1", "alice",
		&records.Comment{ID: "c1", PostID: "p1", UserID: strPtr("alice"), Content: "mine", CreatedAt: time.Now().UTC()},
		&records.Comment{ID: "c2", PostID: "p1", UserID: strPtr("bob"), ParentID: strPtr("c1"), Content: "reply", CreatedAt: time.Now().UTC()},
	)

	err := svc.DeleteComment(context.Background(), DeleteCommentRequest{
		ViewerID: "alice", PostID: "p1", CommentID: "c1",
	})
	require.NoError(t, err)

	snap, _ := store.Get(threadKey)
	thread := snap.Value.(*comments.Thread)
	require.Len(t, thread.Comments, 2)
	assert.NotNil(t, thread.Comments[0].DeletedAt)
	assert.Empty(t, thread.Comments[0].Content)
	// The reply still points at its parent.
	assert.Equal(t, "c1", *thread.Comments[1].ParentID)

	feedSnap, _ := store.Get(cache.FeedKey("hot", "alice"))
	assert.Equal(t, 1, feedSnap.Value.(*feeds.Snapshot).FindPost("p1").CommentCount)

	calls := fake.WriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, backend.OpDelete, calls[0].Op)
}

func strPtr(s string) *string { return &s }
