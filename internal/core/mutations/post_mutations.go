package mutations

import (
	"context"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/records"
)

// CreatePostRequest contains parameters for creating a post.
type CreatePostRequest struct {
	ViewerID    string
	Title       string
	Content     string
	IsAnonymous bool
	// PollOptions, when set, attaches a poll with zeroed counts.
	PollOptions []string
}

// CreatePostResponse contains the result of creating a post.
type CreatePostResponse struct {
	ID string `json:"id"`
}

// CreatePost inserts an optimistic temp post at the head of the viewer's
// cached "new" feed and dispatches the write. Aggregates start zeroed;
// display fields are best-effort guesses until the server confirms.
func (s *Service) CreatePost(ctx context.Context, req CreatePostRequest) (*CreatePostResponse, error) {
	if req.ViewerID == "" {
		return nil, ErrViewerRequired
	}
	content, err := validateContent(req.Content)
	if err != nil {
		return nil, err
	}

	temp := &records.Post{
		ID:          records.NewTempID(),
		OwnerID:     req.ViewerID,
		Title:       req.Title,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
		IsAnonymous: req.IsAnonymous,
	}
	for _, opt := range req.PollOptions {
		temp.PollOptions = append(temp.PollOptions, records.PollOpt{Text: opt})
	}

	newFeedKey := cache.FeedKey(string(feeds.FilterNew), req.ViewerID)

	var confirmedID string
	m := Mutation{
		Name: "post.create",
		Keys: []cache.Key{newFeedKey},
		Apply: func(tx *Txn) {
			if v, ok := tx.Get(newFeedKey); ok {
				snapshot := v.(*feeds.Snapshot)
				snapshot.PrependPost(temp.Clone().(*records.Post))
				tx.Set(newFeedKey, snapshot)
			}
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return s.backend.Write(ctx, records.CollectionPosts, backend.OpInsert, temp)
		},
		Reconcile: func(tx *Txn, result any) {
			confirmed, ok := result.(records.Record)
			if !ok || confirmed == nil {
				return
			}
			post, ok := confirmed.(*records.Post)
			if !ok {
				return
			}
			confirmedID = post.ID
			if v, ok := tx.Get(newFeedKey); ok {
				snapshot := v.(*feeds.Snapshot)
				if snapshot.ReplacePost(temp.ID, post) {
					tx.Set(newFeedKey, snapshot)
				}
			}
		},
		StaleKeys: []cache.Key{cache.ProfileKey(req.ViewerID)},
	}

	if _, err := s.pipeline.Run(ctx, m); err != nil {
		return nil, err
	}
	if confirmedID == "" {
		confirmedID = temp.ID
	}
	return &CreatePostResponse{ID: confirmedID}, nil
}

// DeletePostRequest contains parameters for deleting a post.
type DeletePostRequest struct {
	ViewerID string
	PostID   string
}

// DeletePost prunes the post from the viewer's cached feeds and dispatches
// the delete. The pruned snapshots can no longer carry a trustworthy
// pagination signal, so the feed surface is marked stale and refetches on
// the next read; the post's comment surface goes with it.
func (s *Service) DeletePost(ctx context.Context, req DeletePostRequest) error {
	if req.ViewerID == "" {
		return ErrViewerRequired
	}
	if req.PostID == "" {
		return ErrTargetRequired
	}

	m := Mutation{
		Name: "post.delete",
		Keys: feedKeys(req.ViewerID),
		Apply: func(tx *Txn) {
			for _, fk := range feedKeys(req.ViewerID) {
				if v, ok := tx.Get(fk); ok {
					snapshot := v.(*feeds.Snapshot)
					if snapshot.RemovePost(req.PostID) {
						tx.Set(fk, snapshot)
					}
				}
			}
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return s.backend.Write(ctx, records.CollectionPosts, backend.OpDelete, &records.Post{
				ID:      req.PostID,
				OwnerID: req.ViewerID,
			})
		},
		StaleKeys:     []cache.Key{cache.ProfileKey(req.ViewerID)},
		StaleSurfaces: []string{"feed", "comments"},
	}

	_, err := s.pipeline.Run(ctx, m)
	return err
}

// RepostRequest contains parameters for reposting an existing post.
type RepostRequest struct {
	ViewerID    string
	PostID      string
	IsAnonymous bool
}

// Repost creates a repost referencing the original and optimistically bumps
// the original's repost count wherever it is cached.
func (s *Service) Repost(ctx context.Context, req RepostRequest) (*CreatePostResponse, error) {
	if req.ViewerID == "" {
		return nil, ErrViewerRequired
	}
	if req.PostID == "" {
		return nil, ErrTargetRequired
	}

	// Carry original-author context so the repost-aware blocklist rule can
	// run without an extra fetch.
	var origOwner *string
	origAnon := false
	for _, fk := range feedKeys(req.ViewerID) {
		if snap, ok := s.store.Get(fk); ok {
			if orig := snap.Value.(*feeds.Snapshot).FindPost(req.PostID); orig != nil {
				owner := orig.OwnerID
				origOwner = &owner
				origAnon = orig.IsAnonymous
				break
			}
		}
	}

	postID := req.PostID
	temp := &records.Post{
		ID:          records.NewTempID(),
		OwnerID:     req.ViewerID,
		CreatedAt:   time.Now().UTC(),
		IsAnonymous: req.IsAnonymous,
		RepostOfID:  &postID,
		RepostOwner: origOwner,
		RepostAnon:  origAnon,
	}

	newFeedKey := cache.FeedKey(string(feeds.FilterNew), req.ViewerID)

	var confirmedID string
	m := Mutation{
		Name: "post.repost",
		Keys: feedKeys(req.ViewerID),
		Apply: func(tx *Txn) {
			if v, ok := tx.Get(newFeedKey); ok {
				snapshot := v.(*feeds.Snapshot)
				snapshot.PrependPost(temp.Clone().(*records.Post))
				tx.Set(newFeedKey, snapshot)
			}
			for _, fk := range feedKeys(req.ViewerID) {
				if v, ok := tx.Get(fk); ok {
					snapshot := v.(*feeds.Snapshot)
					if snapshot.AdjustRepostCount(req.PostID, 1) {
						tx.Set(fk, snapshot)
					}
				}
			}
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return s.backend.Write(ctx, records.CollectionPosts, backend.OpInsert, temp)
		},
		Reconcile: func(tx *Txn, result any) {
			confirmed, ok := result.(records.Record)
			if !ok || confirmed == nil {
				return
			}
			post, ok := confirmed.(*records.Post)
			if !ok {
				return
			}
			confirmedID = post.ID
			if v, ok := tx.Get(newFeedKey); ok {
				snapshot := v.(*feeds.Snapshot)
				if snapshot.ReplacePost(temp.ID, post) {
					tx.Set(newFeedKey, snapshot)
				}
			}
		},
		StaleKeys: []cache.Key{cache.ProfileKey(req.ViewerID)},
	}

	if _, err := s.pipeline.Run(ctx, m); err != nil {
		return nil, err
	}
	if confirmedID == "" {
		confirmedID = temp.ID
	}
	return &CreatePostResponse{ID: confirmedID}, nil
}
