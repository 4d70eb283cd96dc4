package comments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Driftline/internal/backend/backendtest"
	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

func newThreadService(t *testing.T) (Service, *cache.Store, *backendtest.Fake) {
	t.Helper()
	store := cache.NewStore(128, time.Minute, nil)
	fake := backendtest.NewFake()
	bl := blocklist.NewCachedResolver(blocklist.NewResolver(fake, true, nil), store)
	return NewCommentService(store, fake, bl, nil), store, fake
}

func seedComment(fake *backendtest.Fake, id, postID string, parent *string, user string, at time.Time) {
	fake.Seed(records.CollectionComments, &records.Comment{
		ID:        id,
		PostID:    postID,
		ParentID:  parent,
		UserID:    &user,
		Content:   "c",
		CreatedAt: at,
	})
}

func TestGetThread_BuildsForestAndCountsEveryComment(t *testing.T) {
	svc, _, fake := newThreadService(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	root := "c1"
	seedComment(fake, "c1", "p1", nil, "bob", base)
	seedComment(fake, "c2", "p1", &root, "carol", base.Add(time.Minute))
	seedComment(fake, "c3", "p1", nil, "dave", base.Add(2*time.Minute))

	resp, err := svc.GetThread(context.Background(), &GetThreadRequest{
		PostID: "p1", ViewerID: "alice",
	})
	require.NoError(t, err)

	require.Len(t, resp.Comments, 2)
	assert.Len(t, resp.Comments[0].Replies, 1)
	// Nested replies count toward the total alongside the roots.
	assert.Equal(t, 3, resp.Total)
	assert.False(t, resp.IsStale)
}

func TestGetThread_TotalReflectsBlocklistFiltering(t *testing.T) {
	svc, _, fake := newThreadService(t)
	fake.Seed(records.CollectionBlocks, &records.Block{
		ID: "b1", BlockerID: "alice", BlockedID: "troll",
	})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedComment(fake, "c1", "p1", nil, "troll", base)
	seedComment(fake, "c2", "p1", nil, "bob", base.Add(time.Minute))

	resp, err := svc.GetThread(context.Background(), &GetThreadRequest{
		PostID: "p1", ViewerID: "alice",
	})
	require.NoError(t, err)

	require.Len(t, resp.Comments, 1)
	assert.Equal(t, "c2", resp.Comments[0].Comment.ID)
	assert.Equal(t, 1, resp.Total)
}

func TestGetThread_RequiresPostID(t *testing.T) {
	svc, _, _ := newThreadService(t)

	_, err := svc.GetThread(context.Background(), &GetThreadRequest{ViewerID: "alice"})
	assert.ErrorIs(t, err, ErrPostRequired)
}
