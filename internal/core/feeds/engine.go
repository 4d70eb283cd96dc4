package feeds

import (
	"sort"

	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/records"
)

// Engagement is the ranking signal for the hot filter:
// |score| + commentCount + repostCount. Absolute value of the score is
// intentional: heavily downvoted content is as engaging as popular content
// and hot rewards both.
func Engagement(p *records.Post) int {
	score := p.VoteScore
	if score < 0 {
		score = -score
	}
	return score + p.CommentCount + p.RepostCount
}

// Merge combines fetched pages into the final feed ordering:
//
//  1. Concatenate pages in fetch order.
//  2. Deduplicate by id, last occurrence wins — concurrent inserts shift
//     offsets, so an item can appear in two adjacent pages.
//  3. Apply the blocklist with the anonymity override: an item is hidden if
//     its author is blocked, unless the item is anonymous; a repost is
//     additionally hidden if the original author is blocked, unless the
//     original is anonymous. Anonymity always overrides blocking.
//  4. For hot, re-rank by engagement descending with a stable sort: equal
//     engagement keeps fetch-time (recency) order.
//
// Pure; never fails.
func Merge(pages [][]*records.Post, f Filter, hidden blocklist.Set) []*records.Post {
	var flat []*records.Post
	for _, page := range pages {
		flat = append(flat, page...)
	}

	// Dedup by id, last occurrence wins, first position kept.
	indexOf := make(map[string]int, len(flat))
	deduped := make([]*records.Post, 0, len(flat))
	for _, p := range flat {
		if i, seen := indexOf[p.ID]; seen {
			deduped[i] = p
			continue
		}
		indexOf[p.ID] = len(deduped)
		deduped = append(deduped, p)
	}

	visible := make([]*records.Post, 0, len(deduped))
	for _, p := range deduped {
		if Visible(p, hidden) {
			visible = append(visible, p)
		}
	}

	if f == FilterHot {
		sort.SliceStable(visible, func(i, j int) bool {
			return Engagement(visible[i]) > Engagement(visible[j])
		})
	}

	return visible
}

// Visible applies the repost-aware blocklist rule to one post.
func Visible(p *records.Post, hidden blocklist.Set) bool {
	if hidden.Has(p.OwnerID) && !p.IsAnonymous {
		return false
	}
	if p.IsRepost() && p.RepostOwner != nil && hidden.Has(*p.RepostOwner) && !p.RepostAnon {
		return false
	}
	return true
}
