package feeds

import (
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

// Filter selects a feed ranking strategy.
type Filter string

const (
	// FilterNew orders by creation time, newest first.
	FilterNew Filter = "new"
	// FilterTop orders the trailing week by aggregate score.
	FilterTop Filter = "top"
	// FilterHot re-ranks the trailing week by engagement client-side.
	FilterHot Filter = "hot"
)

// Page sizes per filter. Hot fetches a larger sample because the backend
// cannot order by engagement; re-ranking a bigger recency window client-side
// gives the ranking something to work with.
const (
	NewPageSize = 10
	TopPageSize = 10
	HotPageSize = 100
)

// TopWindowDays is the trailing window for the top and hot filters.
const TopWindowDays = 7

// ValidFilter reports whether f is a known filter.
func ValidFilter(f Filter) bool {
	return f == FilterNew || f == FilterTop || f == FilterHot
}

// PageSize returns the fetch page size for a filter.
func PageSize(f Filter) int {
	if f == FilterHot {
		return HotPageSize
	}
	return NewPageSize
}

// Snapshot is the cached value for one (viewer, filter) pair: the pages
// fetched so far, in fetch order, plus optimistic inserts held apart from
// them. Merging, filtering, and ranking are derived from it per read.
//
// Pending must stay separate: the pagination termination rule reads fetched
// page lengths, and an optimistic insert folded into a page would make a
// full page look overfull (or a short page look full) and corrupt it.
type Snapshot struct {
	Pages   [][]*records.Post
	Pending []*records.Post
}

// CloneValue implements cache.Value with a deep copy.
func (s *Snapshot) CloneValue() cache.Value {
	c := &Snapshot{Pages: make([][]*records.Post, len(s.Pages))}
	for i, page := range s.Pages {
		cp := make([]*records.Post, len(page))
		for j, p := range page {
			cp[j] = p.Clone().(*records.Post)
		}
		c.Pages[i] = cp
	}
	if len(s.Pending) > 0 {
		c.Pending = make([]*records.Post, len(s.Pending))
		for i, p := range s.Pending {
			c.Pending[i] = p.Clone().(*records.Post)
		}
	}
	return c
}

// HasNextPage applies the termination rule: a next page exists if and only
// if the most recently fetched page is exactly full. Pending inserts never
// count; only what the backend actually returned decides termination. No
// total-count query is ever issued.
func (s *Snapshot) HasNextPage(f Filter) bool {
	if len(s.Pages) == 0 {
		return true
	}
	return len(s.Pages[len(s.Pages)-1]) == PageSize(f)
}

// MergePages returns pending inserts as a leading page followed by the
// fetched pages, the order Merge expects: dedup keeps first position, so an
// optimistic insert renders at the head until a fetched page confirms it.
func (s *Snapshot) MergePages() [][]*records.Post {
	if len(s.Pending) == 0 {
		return s.Pages
	}
	return append([][]*records.Post{s.Pending}, s.Pages...)
}

// All returns pending inserts followed by every fetched page, in fetch order.
func (s *Snapshot) All() []*records.Post {
	var out []*records.Post
	out = append(out, s.Pending...)
	for _, page := range s.Pages {
		out = append(out, page...)
	}
	return out
}

// GetFeedRequest represents input for reading a feed.
type GetFeedRequest struct {
	ViewerID string
	Filter   Filter
	// Page is the highest page index the caller wants loaded. Pages up to
	// and including it are fetched if missing.
	Page int
}

// FeedResponse represents the merged, ranked feed output.
type FeedResponse struct {
	Feed    []*FeedViewPost `json:"feed"`
	HasMore bool            `json:"hasMore"`
	IsStale bool            `json:"isStale"`
}

// FeedViewPost is the UI-facing shape of one feed item.
type FeedViewPost struct {
	ID           string  `json:"id"`
	OwnerID      string  `json:"ownerId,omitempty"`
	Title        string  `json:"title,omitempty"`
	Content      string  `json:"content"`
	CreatedAt    string  `json:"createdAt"`
	IsAnonymous  bool    `json:"isAnonymous"`
	IsPending    bool    `json:"isPending,omitempty"`
	Score        int     `json:"score"`
	CommentCount int     `json:"commentCount"`
	RepostCount  int     `json:"repostCount"`
	RepostOfID   *string `json:"repostOfId,omitempty"`
	ViewerVote   string  `json:"viewerVote,omitempty"`
	Saved        bool    `json:"saved,omitempty"`
}

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}
