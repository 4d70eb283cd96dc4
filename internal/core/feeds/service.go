package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/bookmarks"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
	"Driftline/internal/core/votes"
)

// Service defines the business logic interface for the feed query surface.
type Service interface {
	// GetFeed returns the merged, ranked feed for a (viewer, filter) pair,
	// fetching any missing pages up to the requested page.
	GetFeed(ctx context.Context, req GetFeedRequest) (*FeedResponse, error)
}

type feedService struct {
	store     *cache.Store
	backend   backend.RemoteService
	blocklist *blocklist.CachedResolver
	logger    *slog.Logger
}

// NewFeedService creates a new feed service.
func NewFeedService(store *cache.Store, svc backend.RemoteService, bl *blocklist.CachedResolver, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &feedService{
		store:     store,
		backend:   svc,
		blocklist: bl,
		logger:    logger,
	}
}

// GetFeed resolves a feed query.
// Algorithm:
//  1. Validate request.
//  2. Load the cached snapshot for (viewer, filter); a stale snapshot is
//     refetched from page zero (offsets drift under concurrent inserts, so
//     partial refresh is not meaningful).
//  3. Fetch missing pages up to the requested page, stopping early at a
//     short page.
//  4. Merge, deduplicate, blocklist-filter, and rank (see Merge).
//  5. Hydrate viewer vote and bookmark state, best-effort.
func (s *feedService) GetFeed(ctx context.Context, req GetFeedRequest) (*FeedResponse, error) {
	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	key := cache.FeedKey(string(req.Filter), req.ViewerID)

	snapshot := &Snapshot{}
	isStale := false
	if snap, ok := s.store.Get(key); ok {
		if snap.IsStale {
			isStale = true
		} else {
			snapshot = snap.Value.(*Snapshot)
		}
	}

	// Fetch pages we don't have yet. The snapshot is extended page by page
	// so a mid-sequence failure keeps what already landed.
	for len(snapshot.Pages) <= req.Page && snapshot.HasNextPage(req.Filter) {
		gen := s.store.BeginFetch(key)
		page, err := s.fetchPage(ctx, req.Filter, len(snapshot.Pages))
		if err != nil {
			if len(snapshot.Pages) > 0 {
				// Partial page degradation: serve what we have.
				s.logger.Warn("feed page fetch failed, serving partial feed",
					"filter", req.Filter,
					"page", len(snapshot.Pages),
					"error", err)
				break
			}
			return nil, fmt.Errorf("failed to fetch feed page: %w", err)
		}
		snapshot.Pages = append(snapshot.Pages, page)
		// A landed refetch replaces the stale snapshot with fresh data.
		isStale = false
		if !s.store.CompleteFetch(key, gen, snapshot) {
			// A mutation overwrote the key mid-fetch; its state wins.
			if cur, ok := s.store.Get(key); ok {
				snapshot = cur.Value.(*Snapshot)
			}
			break
		}
	}

	// Fail-open trade-off: on resolver failure the feed renders unfiltered
	// rather than empty (see blocklist.Resolver).
	hidden, err := s.blocklist.Hidden(ctx, req.ViewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blocklist: %w", err)
	}

	merged := Merge(snapshot.MergePages(), req.Filter, hidden)

	return &FeedResponse{
		Feed:    s.buildFeedViews(ctx, merged, req.ViewerID),
		HasMore: snapshot.HasNextPage(req.Filter),
		IsStale: isStale,
	}, nil
}

// fetchPage issues one backend page fetch for a filter.
func (s *feedService) fetchPage(ctx context.Context, f Filter, page int) ([]*records.Post, error) {
	size := PageSize(f)
	q := backend.PageQuery{
		OrderBy:    "createdAt",
		Descending: true,
		Offset:     page * size,
		Limit:      size,
	}

	switch f {
	case FilterTop:
		after := time.Now().UTC().AddDate(0, 0, -TopWindowDays)
		q.CreatedAfter = &after
		q.OrderBy = "voteScore"
	case FilterHot:
		after := time.Now().UTC().AddDate(0, 0, -TopWindowDays)
		q.CreatedAfter = &after
		// createdAt ordering at fetch time; engagement re-rank is client-side.
	}

	recs, err := s.backend.FetchPage(ctx, records.CollectionPosts, q)
	if err != nil {
		return nil, err
	}

	posts := make([]*records.Post, 0, len(recs))
	for _, rec := range recs {
		if p, ok := rec.(*records.Post); ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// buildFeedViews converts merged posts to view models, hydrating viewer vote
// and bookmark state. Hydration is best-effort: a failed state fetch leaves
// the fields unset rather than failing the feed.
func (s *feedService) buildFeedViews(ctx context.Context, posts []*records.Post, viewerID string) []*FeedViewPost {
	// Always return an empty slice, never nil (important for JSON serialization)
	views := make([]*FeedViewPost, 0, len(posts))

	var voteState *votes.State
	var bookmarkState *bookmarks.State
	if viewerID != "" {
		var err error
		voteState, err = votes.LoadState(ctx, s.store, s.backend, viewerID)
		if err != nil {
			s.logger.Warn("failed to load viewer vote state", "viewer", viewerID, "error", err)
		}
		bookmarkState, err = bookmarks.LoadState(ctx, s.store, s.backend, viewerID)
		if err != nil {
			s.logger.Warn("failed to load viewer bookmark state", "viewer", viewerID, "error", err)
		}
	}

	for _, p := range posts {
		view := &FeedViewPost{
			ID:           p.ID,
			Title:        p.Title,
			Content:      p.Content,
			CreatedAt:    p.CreatedAt.Format(time.RFC3339),
			IsAnonymous:  p.IsAnonymous,
			IsPending:    records.IsTempID(p.ID),
			Score:        p.VoteScore,
			CommentCount: p.CommentCount,
			RepostCount:  p.RepostCount,
			RepostOfID:   p.RepostOfID,
		}
		// Anonymous posts never expose their author.
		if !p.IsAnonymous {
			view.OwnerID = p.OwnerID
		}
		if voteState != nil {
			if v := voteState.Get(p.ID); v != nil {
				view.ViewerVote = string(v.Direction)
			}
		}
		if bookmarkState != nil {
			view.Saved = bookmarkState.Get(p.ID) != nil
		}
		views = append(views, view)
	}
	return views
}

// validateRequest validates the feed request parameters
func (s *feedService) validateRequest(req *GetFeedRequest) error {
	if req.Filter == "" {
		req.Filter = FilterHot
	}
	if !ValidFilter(req.Filter) {
		return NewValidationError("filter", "filter must be one of: hot, top, new")
	}
	if req.Page < 0 {
		req.Page = 0
	}
	if req.Page > 100 {
		return NewValidationError("page", "page must not exceed 100")
	}
	return nil
}
