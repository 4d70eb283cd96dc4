package feeds

import (
	"Driftline/internal/core/records"
)

// Optimistic in-place edits used by the mutation pipeline. These operate on
// a cloned snapshot (the cache clones on read and write), so callers mutate
// freely and hand the result back via an overwrite.

// FindPost returns the post with the given id, searching pending inserts
// then pages in fetch order; the last occurrence wins to match Merge's
// dedup rule.
func (s *Snapshot) FindPost(id string) *records.Post {
	var found *records.Post
	for _, page := range s.MergePages() {
		for _, p := range page {
			if p.ID == id {
				found = p
			}
		}
	}
	return found
}

// forEachPost applies fn to every occurrence of the post id, pending
// inserts included (duplicates from offset drift must all be updated or a
// later dedup pass would resurrect the old value).
func (s *Snapshot) forEachPost(id string, fn func(*records.Post)) bool {
	hit := false
	for _, page := range s.MergePages() {
		for _, p := range page {
			if p.ID == id {
				fn(p)
				hit = true
			}
		}
	}
	return hit
}

// AdjustScore moves a post's aggregate score by delta.
func (s *Snapshot) AdjustScore(postID string, delta int) bool {
	return s.forEachPost(postID, func(p *records.Post) {
		p.VoteScore += delta
	})
}

// AdjustCommentCount moves a post's comment count by delta, clamping at zero.
func (s *Snapshot) AdjustCommentCount(postID string, delta int) bool {
	return s.forEachPost(postID, func(p *records.Post) {
		p.CommentCount += delta
		if p.CommentCount < 0 {
			p.CommentCount = 0
		}
	})
}

// AdjustRepostCount moves a post's repost count by delta, clamping at zero.
func (s *Snapshot) AdjustRepostCount(postID string, delta int) bool {
	return s.forEachPost(postID, func(p *records.Post) {
		p.RepostCount += delta
		if p.RepostCount < 0 {
			p.RepostCount = 0
		}
	})
}

// AdjustPollCount moves one poll option's count by delta, clamping at zero.
func (s *Snapshot) AdjustPollCount(postID string, option, delta int) bool {
	return s.forEachPost(postID, func(p *records.Post) {
		if option >= 0 && option < len(p.PollOptions) {
			p.PollOptions[option].VoteCount += delta
			if p.PollOptions[option].VoteCount < 0 {
				p.PollOptions[option].VoteCount = 0
			}
		}
	})
}

// PrependPost records an optimistic insert ahead of any fetched page, where
// a freshly-created item belongs under recency ordering. Fetched pages are
// never grown: their lengths carry the pagination termination signal.
func (s *Snapshot) PrependPost(p *records.Post) {
	s.Pending = append([]*records.Post{p}, s.Pending...)
}

// ReplacePost swaps every occurrence of id for the confirmed record,
// keeping each logical slot.
func (s *Snapshot) ReplacePost(id string, confirmed *records.Post) bool {
	hit := false
	for _, page := range s.MergePages() {
		for i, p := range page {
			if p.ID == id {
				page[i] = confirmed
				hit = true
			}
		}
	}
	return hit
}

// RemovePost deletes every occurrence of id.
func (s *Snapshot) RemovePost(id string) bool {
	hit := false
	kept := s.Pending[:0]
	for _, p := range s.Pending {
		if p.ID == id {
			hit = true
			continue
		}
		kept = append(kept, p)
	}
	s.Pending = kept
	for pi, page := range s.Pages {
		kept := page[:0]
		for _, p := range page {
			if p.ID == id {
				hit = true
				continue
			}
			kept = append(kept, p)
		}
		s.Pages[pi] = kept
	}
	return hit
}
