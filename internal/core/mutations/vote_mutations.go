package mutations

import (
	"context"
	"fmt"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/comments"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/records"
	"Driftline/internal/core/votes"
)

// ToggleVoteRequest contains parameters for voting on a post or comment.
type ToggleVoteRequest struct {
	ViewerID  string
	TargetID  string
	Direction records.VoteDirection
	// PostID locates the cached comment thread when the target is a
	// comment; empty when the target is a post.
	PostID string
}

// ToggleVoteResponse reports the resolved toggle outcome.
type ToggleVoteResponse struct {
	Action votes.Action  `json:"action"`
	Vote   *records.Vote `json:"vote,omitempty"`
}

// ToggleVote applies the three-way vote toggle optimistically and dispatches
// the single corresponding write. A direction reversal is one update, so the
// visible score moves straight from -1 to +1 without flickering through 0.
func (s *Service) ToggleVote(ctx context.Context, req ToggleVoteRequest) (*ToggleVoteResponse, error) {
	if req.ViewerID == "" {
		return nil, ErrViewerRequired
	}
	if req.TargetID == "" {
		return nil, ErrTargetRequired
	}
	if req.Direction != records.VoteUp && req.Direction != records.VoteDown {
		return nil, ErrInvalidDirection
	}

	// Resolve the toggle against the viewer's current vote state. Reading
	// through the cache makes repeat toggles O(1) after the first load.
	state, err := votes.LoadState(ctx, s.store, s.backend, req.ViewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vote state: %w", err)
	}
	plan := votes.PlanToggle(state.Get(req.TargetID), req.TargetID, req.ViewerID, req.Direction)

	voteKey := cache.VoteStateKey(req.ViewerID)
	keys := append(feedKeys(req.ViewerID), voteKey)
	var threadKey cache.Key
	if req.PostID != "" {
		threadKey = cache.CommentsKey(req.PostID, req.ViewerID)
		keys = append(keys, threadKey)
	}

	m := Mutation{
		Name: "vote.toggle",
		Keys: keys,
		Apply: func(tx *Txn) {
			// Flip the viewer's own vote state.
			next := state.CloneValue().(*votes.State)
			switch plan.Action {
			case votes.ActionDelete:
				next.Remove(req.TargetID)
			default:
				next.Set(plan.Vote)
			}
			tx.Set(voteKey, next)

			// Move the target's visible score everywhere it is cached.
			for _, fk := range feedKeys(req.ViewerID) {
				if v, ok := tx.Get(fk); ok {
					snapshot := v.(*feeds.Snapshot)
					if snapshot.AdjustScore(req.TargetID, plan.ScoreDelta) {
						tx.Set(fk, snapshot)
					}
				}
			}
			if threadKey != "" {
				if v, ok := tx.Get(threadKey); ok {
					thread := v.(*comments.Thread)
					for _, c := range thread.Comments {
						if c.ID == req.TargetID {
							c.VoteScore += plan.ScoreDelta
						}
					}
					tx.Set(threadKey, thread)
				}
			}
		},
		Dispatch: func(ctx context.Context) (any, error) {
			switch plan.Action {
			case votes.ActionInsert:
				return s.backend.Write(ctx, records.CollectionVotes, backend.OpInsert, plan.Vote)
			case votes.ActionUpdate:
				return s.backend.Write(ctx, records.CollectionVotes, backend.OpUpdate, plan.Vote)
			default:
				return s.backend.Write(ctx, records.CollectionVotes, backend.OpDelete, plan.Vote)
			}
		},
		Reconcile: func(tx *Txn, result any) {
			if plan.Action != votes.ActionInsert {
				return
			}
			confirmed, ok := result.(records.Record)
			if !ok || confirmed == nil {
				return
			}
			vote, ok := confirmed.(*records.Vote)
			if !ok {
				return
			}
			// Correlation by the temp id remembered in this closure, not by
			// id equality: the server minted a fresh id.
			if v, ok := tx.Get(voteKey); ok {
				next := v.(*votes.State)
				if cur := next.Get(req.TargetID); cur != nil && cur.ID == plan.Vote.ID {
					next.Set(vote)
					tx.Set(voteKey, next)
				}
			}
		},
		// True aggregate scores come back on the next read of each surface.
		StaleSurfaces: []string{"feed"},
	}

	if _, err := s.pipeline.Run(ctx, m); err != nil {
		return nil, err
	}

	resp := &ToggleVoteResponse{Action: plan.Action}
	if plan.Action != votes.ActionDelete {
		resp.Vote = plan.Vote
	}
	return resp, nil
}
