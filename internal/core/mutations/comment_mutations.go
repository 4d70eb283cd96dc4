package mutations

import (
	"context"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/comments"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/records"
)

// CreateCommentRequest contains parameters for creating a comment or reply.
type CreateCommentRequest struct {
	ViewerID string
	PostID   string
	// ParentID is nil for a top-level comment.
	ParentID *string
	Content  string
}

// CreateCommentResponse contains the result of creating a comment. ID is the
// server-confirmed id once reconciled.
type CreateCommentResponse struct {
	ID string `json:"id"`
}

// CreateComment inserts an optimistic temp comment into the cached thread,
// bumps the post's comment count in cached feeds, and dispatches the write.
// On confirmation the temp entity is replaced in its logical slot; on
// failure every touched key is restored verbatim.
func (s *Service) CreateComment(ctx context.Context, req CreateCommentRequest) (*CreateCommentResponse, error) {
	if req.ViewerID == "" {
		return nil, ErrViewerRequired
	}
	if req.PostID == "" {
		return nil, ErrTargetRequired
	}
	content, err := validateContent(req.Content)
	if err != nil {
		return nil, err
	}

	viewer := req.ViewerID
	temp := &records.Comment{
		ID:        records.NewTempID(),
		PostID:    req.PostID,
		ParentID:  req.ParentID,
		UserID:    &viewer,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		// Zeroed aggregates: the server owns the real counts.
	}

	threadKey := cache.CommentsKey(req.PostID, req.ViewerID)
	keys := append(feedKeys(req.ViewerID), threadKey)

	var confirmedID string
	m := Mutation{
		Name: "comment.create",
		Keys: keys,
		Apply: func(tx *Txn) {
			if v, ok := tx.Get(threadKey); ok {
				thread := v.(*comments.Thread)
				thread.Append(temp.Clone().(*records.Comment))
				tx.Set(threadKey, thread)
			}
			for _, fk := range feedKeys(req.ViewerID) {
				if v, ok := tx.Get(fk); ok {
					snapshot := v.(*feeds.Snapshot)
					if snapshot.AdjustCommentCount(req.PostID, 1) {
						tx.Set(fk, snapshot)
					}
				}
			}
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return s.backend.Write(ctx, records.CollectionComments, backend.OpInsert, temp)
		},
		Reconcile: func(tx *Txn, result any) {
			confirmed, ok := result.(records.Record)
			if !ok || confirmed == nil {
				return
			}
			comment, ok := confirmed.(*records.Comment)
			if !ok {
				return
			}
			confirmedID = comment.ID
			if v, ok := tx.Get(threadKey); ok {
				thread := v.(*comments.Thread)
				// Same logical slot, new id; matched by the temp id this
				// mutation minted, never by id equality with the server.
				if thread.ReplaceByID(temp.ID, comment) {
					tx.Set(threadKey, thread)
				}
			}
		},
		// The author's profile counts and other comment-count consumers
		// refresh lazily.
		StaleKeys:     []cache.Key{cache.ProfileKey(req.ViewerID)},
		StaleSurfaces: []string{"feed"},
	}

	if _, err := s.pipeline.Run(ctx, m); err != nil {
		return nil, err
	}
	if confirmedID == "" {
		confirmedID = temp.ID
	}
	return &CreateCommentResponse{ID: confirmedID}, nil
}

// DeleteCommentRequest contains parameters for soft-deleting a comment.
type DeleteCommentRequest struct {
	ViewerID  string
	PostID    string
	CommentID string
}

// DeleteComment blanks the comment optimistically (threading is preserved;
// replies keep their parent) and dispatches the delete.
func (s *Service) DeleteComment(ctx context.Context, req DeleteCommentRequest) error {
	if req.ViewerID == "" {
		return ErrViewerRequired
	}
	if req.PostID == "" || req.CommentID == "" {
		return ErrTargetRequired
	}

	threadKey := cache.CommentsKey(req.PostID, req.ViewerID)
	keys := append(feedKeys(req.ViewerID), threadKey)

	m := Mutation{
		Name: "comment.delete",
		Keys: keys,
		Apply: func(tx *Txn) {
			if v, ok := tx.Get(threadKey); ok {
				thread := v.(*comments.Thread)
				now := time.Now().UTC()
				for _, c := range thread.Comments {
					if c.ID == req.CommentID {
						c.DeletedAt = &now
						c.Content = ""
					}
				}
				tx.Set(threadKey, thread)
			}
			for _, fk := range feedKeys(req.ViewerID) {
				if v, ok := tx.Get(fk); ok {
					snapshot := v.(*feeds.Snapshot)
					if snapshot.AdjustCommentCount(req.PostID, -1) {
						tx.Set(fk, snapshot)
					}
				}
			}
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return s.backend.Write(ctx, records.CollectionComments, backend.OpDelete, &records.Comment{
				ID:     req.CommentID,
				PostID: req.PostID,
			})
		},
		StaleKeys:     []cache.Key{cache.ProfileKey(req.ViewerID)},
		StaleSurfaces: []string{"feed"},
	}

	_, err := s.pipeline.Run(ctx, m)
	return err
}
