package comments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/records"
)

func strPtr(s string) *string { return &s }

func comment(id, postID string, parentID *string, userID string) *records.Comment {
	return &records.Comment{
		ID:        id,
		PostID:    postID,
		ParentID:  parentID,
		UserID:    strPtr(userID),
		Content:   "content of " + id,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildTree_NestsRepliesUnderParents(t *testing.T) {
	input := []*records.Comment{
		comment("c1", "p1", nil, "alice"),
		comment("c2", "p1", strPtr("c1"), "bob"),
		comment("c3", "p1", strPtr("c2"), "carol"),
		comment("c4", "p1", nil, "dave"),
	}

	roots := BuildTree(input, blocklist.Set{})

	require.Len(t, roots, 2)
	assert.Equal(t, "c1", roots[0].Comment.ID)
	assert.Equal(t, "c4", roots[1].Comment.ID)

	require.Len(t, roots[0].Replies, 1)
	assert.Equal(t, "c2", roots[0].Replies[0].Comment.ID)
	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, "c3", roots[0].Replies[0].Replies[0].Comment.ID)
}

func TestBuildTree_IsDeterministic(t *testing.T) {
	input := []*records.Comment{
		comment("c1", "p1", nil, "alice"),
		comment("c2", "p1", strPtr("c1"), "bob"),
		comment("c3", "p1", strPtr("missing"), "carol"),
		comment("c4", "p1", nil, "dave"),
		comment("c5", "p1", strPtr("c1"), "erin"),
	}

	first := Flatten(BuildTree(input, blocklist.Set{}))
	for i := 0; i < 10; i++ {
		again := Flatten(BuildTree(input, blocklist.Set{}))
		assert.Equal(t, first, again)
	}
}

func TestBuildTree_PromotesOrphansToRoots(t *testing.T) {
	input := []*records.Comment{
		comment("c1", "p1", nil, "alice"),
		// Parent never indexed
		comment("c2", "p1", strPtr("missing"), "bob"),
	}

	roots := BuildTree(input, blocklist.Set{})

	require.Len(t, roots, 2)
	assert.Equal(t, "c1", roots[0].Comment.ID)
	assert.Equal(t, "c2", roots[1].Comment.ID)
	assert.Empty(t, roots[1].Replies)
}

func TestBuildTree_PromotesRepliesOfBlockedAuthors(t *testing.T) {
	input := []*records.Comment{
		comment("c1", "p1", nil, "blocked-user"),
		comment("c2", "p1", strPtr("c1"), "bob"),
		comment("c3", "p1", strPtr("c2"), "carol"),
	}

	roots := BuildTree(input, blocklist.Set{"blocked-user": {}})

	// The blocked root disappears; its reply is promoted and keeps its own
	// subtree.
	require.Len(t, roots, 1)
	assert.Equal(t, "c2", roots[0].Comment.ID)
	require.Len(t, roots[0].Replies, 1)
	assert.Equal(t, "c3", roots[0].Replies[0].Comment.ID)
}

func TestBuildTree_DropsNullUserComments(t *testing.T) {
	bad := comment("c1", "p1", nil, "x")
	bad.UserID = nil
	input := []*records.Comment{
		bad,
		comment("c2", "p1", strPtr("c1"), "bob"),
	}

	roots := BuildTree(input, blocklist.Set{})

	require.Len(t, roots, 1)
	assert.Equal(t, "c2", roots[0].Comment.ID)
}

func TestBuildTree_DuplicateIDsLastWriteWins(t *testing.T) {
	older := comment("c1", "p1", nil, "alice")
	older.Content = "older"
	newer := comment("c1", "p1", nil, "alice")
	newer.Content = "newer"

	roots := BuildTree([]*records.Comment{older, newer}, blocklist.Set{})

	// One node, carrying the later occurrence's content, at the first
	// occurrence's position.
	require.Len(t, roots, 1)
	assert.Equal(t, "newer", roots[0].Comment.Content)
}

func TestBuildTree_BreaksParentCycles(t *testing.T) {
	input := []*records.Comment{
		comment("c1", "p1", strPtr("c2"), "alice"),
		comment("c2", "p1", strPtr("c1"), "bob"),
	}

	roots := BuildTree(input, blocklist.Set{})

	// Still a forest: every comment reachable exactly once.
	assert.Len(t, Flatten(roots), 2)
	require.NotEmpty(t, roots)
}

func TestBuildTree_SelfParentPromoted(t *testing.T) {
	input := []*records.Comment{
		comment("c1", "p1", strPtr("c1"), "alice"),
	}

	roots := BuildTree(input, blocklist.Set{})

	require.Len(t, roots, 1)
	assert.Empty(t, roots[0].Replies)
}

func TestBuildThreadViews_DeletedCommentBecomesPlaceholder(t *testing.T) {
	deletedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	deleted := comment("c1", "p1", nil, "alice")
	deleted.DeletedAt = &deletedAt
	input := []*records.Comment{
		deleted,
		comment("c2", "p1", strPtr("c1"), "bob"),
	}

	roots := BuildTree(input, blocklist.Set{})
	views := buildThreadViews(roots)

	require.Len(t, views, 1)
	assert.True(t, views[0].Comment.IsDeleted)
	assert.Empty(t, views[0].Comment.Content)
	assert.Empty(t, views[0].Comment.UserID)
	// Replies keep their position under the placeholder.
	require.Len(t, views[0].Replies, 1)
	assert.Equal(t, "c2", views[0].Replies[0].Comment.ID)
}
