package mutations

import (
	"context"
	"fmt"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/bookmarks"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

// ToggleBookmarkRequest contains parameters for saving/unsaving a post.
type ToggleBookmarkRequest struct {
	ViewerID string
	PostID   string
}

// ToggleBookmarkResponse reports whether the post ended up saved.
type ToggleBookmarkResponse struct {
	Saved bool `json:"saved"`
}

// ToggleBookmark flips the viewer's bookmark on a post: missing → insert,
// present → delete. The cached boolean flips immediately; rollback restores
// it exactly.
func (s *Service) ToggleBookmark(ctx context.Context, req ToggleBookmarkRequest) (*ToggleBookmarkResponse, error) {
	if req.ViewerID == "" {
		return nil, ErrViewerRequired
	}
	if req.PostID == "" {
		return nil, ErrTargetRequired
	}

	state, err := bookmarks.LoadState(ctx, s.store, s.backend, req.ViewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmark state: %w", err)
	}
	existing := state.Get(req.PostID)

	key := cache.BookmarksKey(req.ViewerID)

	var temp *records.Bookmark
	if existing == nil {
		temp = &records.Bookmark{
			ID:        records.NewTempID(),
			UserID:    req.ViewerID,
			PostID:    req.PostID,
			CreatedAt: time.Now().UTC(),
		}
	}

	m := Mutation{
		Name: "bookmark.toggle",
		Keys: []cache.Key{key},
		Apply: func(tx *Txn) {
			next := state.CloneValue().(*bookmarks.State)
			if existing == nil {
				next.Set(temp)
			} else {
				next.Remove(req.PostID)
			}
			tx.Set(key, next)
		},
		Dispatch: func(ctx context.Context) (any, error) {
			if existing == nil {
				return s.backend.Write(ctx, records.CollectionBookmarks, backend.OpInsert, temp)
			}
			return s.backend.Write(ctx, records.CollectionBookmarks, backend.OpDelete, existing)
		},
		Reconcile: func(tx *Txn, result any) {
			if existing != nil {
				return
			}
			confirmed, ok := result.(records.Record)
			if !ok || confirmed == nil {
				return
			}
			bookmark, ok := confirmed.(*records.Bookmark)
			if !ok {
				return
			}
			if v, ok := tx.Get(key); ok {
				next := v.(*bookmarks.State)
				if cur := next.Get(req.PostID); cur != nil && cur.ID == temp.ID {
					next.Set(bookmark)
					tx.Set(key, next)
				}
			}
		},
	}

	if _, err := s.pipeline.Run(ctx, m); err != nil {
		return nil, err
	}
	return &ToggleBookmarkResponse{Saved: existing == nil}, nil
}
