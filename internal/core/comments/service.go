package comments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

const (
	// threadPageSize is the backend page size for flat thread fetches.
	threadPageSize = 100

	// maxThreadPages bounds runaway threads; deeper pagination belongs to a
	// dedicated "load more" surface, not the initial thread fetch.
	maxThreadPages = 50
)

// Service defines the business logic interface for the comment query surface.
type Service interface {
	// GetThread retrieves and builds a threaded comment view for a post,
	// reading through the entity cache.
	GetThread(ctx context.Context, req *GetThreadRequest) (*GetThreadResponse, error)
}

// GetThreadRequest defines the parameters for fetching a thread.
type GetThreadRequest struct {
	PostID   string
	ViewerID string
	// Refresh forces a refetch even when a fresh cached thread exists.
	Refresh bool
}

// GetThreadResponse carries the query result contract: data plus staleness.
// Total counts every rendered comment across the forest, nested replies and
// deleted placeholders included.
type GetThreadResponse struct {
	Comments  []*ThreadViewComment `json:"comments"`
	Total     int                  `json:"total"`
	IsStale   bool                 `json:"isStale"`
	FetchedAt time.Time            `json:"fetchedAt"`
}

type commentService struct {
	store     *cache.Store
	backend   backend.RemoteService
	blocklist *blocklist.CachedResolver
	logger    *slog.Logger
}

// NewCommentService creates a new comment query service.
func NewCommentService(store *cache.Store, svc backend.RemoteService, bl *blocklist.CachedResolver, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &commentService{
		store:     store,
		backend:   svc,
		blocklist: bl,
		logger:    logger,
	}
}

// GetThread retrieves a post's comments with threading.
// Algorithm:
//  1. Validate input.
//  2. Serve the cached flat record set when fresh; otherwise refetch it,
//     honoring fetch cancellation (an optimistic overwrite that lands during
//     the fetch wins and the fetched value is discarded).
//  3. Resolve the viewer's hidden set (fail-open: a resolver failure shows
//     the thread unfiltered rather than hiding it — see blocklist.Resolver).
//  4. Build the forest and convert to view models.
func (s *commentService) GetThread(ctx context.Context, req *GetThreadRequest) (*GetThreadResponse, error) {
	if req == nil || req.PostID == "" {
		return nil, ErrPostRequired
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	key := cache.CommentsKey(req.PostID, req.ViewerID)

	var (
		thread    *Thread
		isStale   bool
		fetchedAt time.Time
	)

	snap, ok := s.store.Get(key)
	if ok && !snap.IsStale && !req.Refresh {
		thread = snap.Value.(*Thread)
		fetchedAt = snap.FetchedAt
	} else {
		gen := s.store.BeginFetch(key)
		fetched, err := s.fetchThread(ctx, req.PostID)
		if err != nil {
			// Serve the stale copy if we have one; the error surfaces only
			// when there is nothing at all to show.
			if ok {
				s.logger.Warn("thread refetch failed, serving stale copy",
					"post", req.PostID,
					"error", err)
				thread = snap.Value.(*Thread)
				isStale = true
				fetchedAt = snap.FetchedAt
			} else {
				return nil, fmt.Errorf("failed to fetch thread: %w", err)
			}
		} else if s.store.CompleteFetch(key, gen, fetched) {
			thread = fetched
			fetchedAt = time.Now().UTC()
		} else {
			// Fetch was cancelled by a concurrent optimistic write; the
			// cache now holds newer state than the wire gave us.
			current, exists := s.store.Get(key)
			if exists {
				thread = current.Value.(*Thread)
				isStale = current.IsStale
				fetchedAt = current.FetchedAt
			} else {
				thread = fetched
				fetchedAt = time.Now().UTC()
			}
		}
	}

	hidden, err := s.blocklist.Hidden(ctx, req.ViewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blocklist: %w", err)
	}

	roots := BuildTree(thread.Comments, hidden)

	return &GetThreadResponse{
		Comments:  buildThreadViews(roots),
		Total:     len(Flatten(roots)),
		IsStale:   isStale,
		FetchedAt: fetchedAt,
	}, nil
}

// fetchThread pages through the backend's flat comment set for a post.
func (s *commentService) fetchThread(ctx context.Context, postID string) (*Thread, error) {
	thread := &Thread{Comments: make([]*records.Comment, 0, threadPageSize)}
	offset := 0

	for page := 0; page < maxThreadPages; page++ {
		recs, err := s.backend.FetchPage(ctx, records.CollectionComments, backend.PageQuery{
			Where:   map[string]string{"postId": postID},
			OrderBy: "createdAt",
			Offset:  offset,
			Limit:   threadPageSize,
		})
		if err != nil {
			return nil, err
		}

		for _, rec := range recs {
			if c, ok := rec.(*records.Comment); ok {
				thread.Append(c)
			}
		}

		// A short page is the termination signal.
		if len(recs) < threadPageSize {
			break
		}
		offset += threadPageSize
	}

	return thread, nil
}
