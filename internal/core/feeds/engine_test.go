package feeds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/records"
)

func strPtr(s string) *string { return &s }

func post(id, owner string) *records.Post {
	return &records.Post{
		ID:        id,
		OwnerID:   owner,
		Title:     "title " + id,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(posts []*records.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestMerge_DeduplicatesAcrossPages(t *testing.T) {
	// Concurrent inserts shifted offsets: p3 appears at the end of page one
	// and the start of page two.
	stale := post("p3", "alice")
	stale.VoteScore = 1
	fresh := post("p3", "alice")
	fresh.VoteScore = 7

	pages := [][]*records.Post{
		{post("p1", "a"), post("p2", "b"), stale},
		{fresh, post("p4", "c")},
	}

	merged := Merge(pages, FilterNew, blocklist.Set{})

	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, ids(merged))
	// Later occurrence's data wins, earlier position kept.
	assert.Equal(t, 7, merged[2].VoteScore)
}

func TestMerge_FiltersBlockedAuthors(t *testing.T) {
	pages := [][]*records.Post{
		{post("p1", "alice"), post("p2", "blocked"), post("p3", "bob")},
	}

	merged := Merge(pages, FilterNew, blocklist.Set{"blocked": {}})

	assert.Equal(t, []string{"p1", "p3"}, ids(merged))
}

func TestMerge_AnonymityOverridesBlocking(t *testing.T) {
	anon := post("p2", "blocked")
	anon.IsAnonymous = true

	pages := [][]*records.Post{
		{post("p1", "alice"), anon},
	}

	merged := Merge(pages, FilterNew, blocklist.Set{"blocked": {}})

	assert.Equal(t, []string{"p1", "p2"}, ids(merged))
}

func TestVisible_RepostOfBlockedOriginal(t *testing.T) {
	hidden := blocklist.Set{"blocked": {}}

	repost := post("r1", "alice")
	repost.RepostOfID = strPtr("orig")
	repost.RepostOwner = strPtr("blocked")
	assert.False(t, Visible(repost, hidden))

	// Anonymous original stays visible even though its author is blocked.
	anonRepost := post("r2", "alice")
	anonRepost.RepostOfID = strPtr("orig")
	anonRepost.RepostOwner = strPtr("blocked")
	anonRepost.RepostAnon = true
	assert.True(t, Visible(anonRepost, hidden))
}

func TestMerge_HotRanksByEngagement(t *testing.T) {
	low := post("p1", "a")
	low.VoteScore = 1

	controversial := post("p2", "b")
	controversial.VoteScore = -10 // engagement 10

	busy := post("p3", "c")
	busy.CommentCount = 4
	busy.RepostCount = 2 // engagement 6

	pages := [][]*records.Post{{low, controversial, busy}}

	merged := Merge(pages, FilterHot, blocklist.Set{})

	assert.Equal(t, []string{"p2", "p3", "p1"}, ids(merged))
}

func TestMerge_HotSortIsStable(t *testing.T) {
	// Equal engagement keeps fetch order.
	a := post("p1", "a")
	a.VoteScore = 5
	b := post("p2", "b")
	b.VoteScore = 5
	c := post("p3", "c")
	c.VoteScore = 5

	merged := Merge([][]*records.Post{{a, b, c}}, FilterHot, blocklist.Set{})

	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(merged))
}

func TestMerge_NonHotKeepsFetchOrder(t *testing.T) {
	a := post("p1", "a")
	a.VoteScore = 1
	b := post("p2", "b")
	b.VoteScore = 100

	merged := Merge([][]*records.Post{{a, b}}, FilterNew, blocklist.Set{})

	assert.Equal(t, []string{"p1", "p2"}, ids(merged))
}

func TestSnapshot_HasNextPage(t *testing.T) {
	fullPage := make([]*records.Post, NewPageSize)
	for i := range fullPage {
		fullPage[i] = post(string(rune('a'+i)), "u")
	}

	t.Run("empty snapshot has next page", func(t *testing.T) {
		s := &Snapshot{}
		assert.True(t, s.HasNextPage(FilterNew))
	})

	t.Run("exactly full last page has next page", func(t *testing.T) {
		s := &Snapshot{Pages: [][]*records.Post{fullPage}}
		assert.True(t, s.HasNextPage(FilterNew))
	})

	t.Run("short last page terminates", func(t *testing.T) {
		s := &Snapshot{Pages: [][]*records.Post{fullPage, fullPage[:3]}}
		assert.False(t, s.HasNextPage(FilterNew))
	})

	t.Run("empty last page terminates", func(t *testing.T) {
		s := &Snapshot{Pages: [][]*records.Post{fullPage, {}}}
		assert.False(t, s.HasNextPage(FilterNew))
	})

	t.Run("optimistic insert does not change termination", func(t *testing.T) {
		full := &Snapshot{Pages: [][]*records.Post{fullPage}}
		full.PrependPost(post(records.NewTempID(), "u"))
		assert.True(t, full.HasNextPage(FilterNew))

		short := &Snapshot{Pages: [][]*records.Post{fullPage[:NewPageSize-1]}}
		short.PrependPost(post(records.NewTempID(), "u"))
		assert.False(t, short.HasNextPage(FilterNew))
	})
}

func TestSnapshot_OptimisticEdits(t *testing.T) {
	p := post("p1", "alice")
	p.VoteScore = 3
	p.CommentCount = 1
	s := &Snapshot{Pages: [][]*records.Post{{p}}}

	t.Run("adjust score", func(t *testing.T) {
		require.True(t, s.AdjustScore("p1", 2))
		assert.Equal(t, 5, s.FindPost("p1").VoteScore)
	})

	t.Run("comment count clamps at zero", func(t *testing.T) {
		require.True(t, s.AdjustCommentCount("p1", -5))
		assert.Equal(t, 0, s.FindPost("p1").CommentCount)
	})

	t.Run("prepend and replace", func(t *testing.T) {
		temp := post(records.NewTempID(), "alice")
		s.PrependPost(temp)
		assert.Equal(t, temp.ID, s.All()[0].ID)
		// The fetched page must not grow; its length is the termination signal.
		assert.Len(t, s.Pages[0], 1)

		confirmed := post("server-id", "alice")
		require.True(t, s.ReplacePost(temp.ID, confirmed))
		assert.Nil(t, s.FindPost(temp.ID))
		assert.NotNil(t, s.FindPost("server-id"))
	})

	t.Run("remove", func(t *testing.T) {
		require.True(t, s.RemovePost("server-id"))
		assert.Nil(t, s.FindPost("server-id"))
	})
}
