package mutations

import (
	"context"
	"fmt"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/records"
)

// PollSelection is the cached value for a viewer's vote on one poll. Polls
// are single-choice, so the value is a single record.
type PollSelection struct {
	Vote *records.PollVote
}

// CloneValue implements cache.Value.
func (p *PollSelection) CloneValue() cache.Value {
	c := &PollSelection{}
	if p.Vote != nil {
		c.Vote = p.Vote.Clone().(*records.PollVote)
	}
	return c
}

// VotePollRequest contains parameters for voting in a post's poll.
type VotePollRequest struct {
	ViewerID    string
	PostID      string
	OptionIndex int
}

// VotePollResponse reports the viewer's selected option after the toggle,
// or nil when the vote was retracted.
type VotePollResponse struct {
	Selected *int `json:"selected"`
}

// VotePoll applies single-choice poll semantics: no prior vote inserts one,
// the same option retracts it, a different option moves it. Option counts on
// the cached post shift optimistically and roll back on failure.
func (s *Service) VotePoll(ctx context.Context, req VotePollRequest) (*VotePollResponse, error) {
	if req.ViewerID == "" {
		return nil, ErrViewerRequired
	}
	if req.PostID == "" {
		return nil, ErrTargetRequired
	}

	existing, err := s.loadPollSelection(ctx, req.PostID, req.ViewerID)
	if err != nil {
		return nil, err
	}
	if req.OptionIndex < 0 || !s.pollHasOption(req.PostID, req.ViewerID, req.OptionIndex) {
		return nil, ErrInvalidOption
	}

	pollKey := cache.PollKey(req.PostID, req.ViewerID)
	keys := append(feedKeys(req.ViewerID), pollKey)

	var temp *records.PollVote
	if existing == nil || existing.OptionIndex != req.OptionIndex {
		temp = &records.PollVote{
			ID:          records.NewTempID(),
			PollID:      req.PostID,
			UserID:      req.ViewerID,
			OptionIndex: req.OptionIndex,
			CreatedAt:   time.Now().UTC(),
		}
	}

	m := Mutation{
		Name: "poll.vote",
		Keys: keys,
		Apply: func(tx *Txn) {
			sel := &PollSelection{Vote: temp}
			if existing != nil && temp != nil {
				// Moving the vote keeps the existing record's identity so the
				// dispatch update targets the right row.
				moved := existing.Clone().(*records.PollVote)
				moved.OptionIndex = req.OptionIndex
				sel.Vote = moved
			}
			tx.Set(pollKey, sel)

			for _, f := range feedFilters {
				key := cache.FeedKey(f, req.ViewerID)
				v, ok := tx.Get(key)
				if !ok {
					continue
				}
				snap := v.(*feeds.Snapshot)
				changed := false
				if existing != nil {
					changed = snap.AdjustPollCount(req.PostID, existing.OptionIndex, -1) || changed
				}
				if temp != nil {
					changed = snap.AdjustPollCount(req.PostID, req.OptionIndex, +1) || changed
				}
				if changed {
					tx.Set(key, snap)
				}
			}
		},
		Dispatch: func(ctx context.Context) (any, error) {
			switch {
			case existing == nil:
				return s.backend.Write(ctx, records.CollectionPollVotes, backend.OpInsert, temp)
			case temp == nil:
				return s.backend.Write(ctx, records.CollectionPollVotes, backend.OpDelete, existing)
			default:
				moved := existing.Clone().(*records.PollVote)
				moved.OptionIndex = req.OptionIndex
				return s.backend.Write(ctx, records.CollectionPollVotes, backend.OpUpdate, moved)
			}
		},
		Reconcile: func(tx *Txn, result any) {
			confirmed, ok := result.(records.Record)
			if !ok || confirmed == nil {
				return
			}
			vote, ok := confirmed.(*records.PollVote)
			if !ok {
				return
			}
			tx.Set(pollKey, &PollSelection{Vote: vote})
		},
	}

	if _, err := s.pipeline.Run(ctx, m); err != nil {
		return nil, err
	}

	resp := &VotePollResponse{}
	if temp != nil {
		idx := req.OptionIndex
		resp.Selected = &idx
	}
	return resp, nil
}

// loadPollSelection returns the viewer's current vote on the poll, reading
// through the cache under the poll/<post>/<viewer> key.
func (s *Service) loadPollSelection(ctx context.Context, postID, viewerID string) (*records.PollVote, error) {
	key := cache.PollKey(postID, viewerID)
	if snap, ok := s.store.Get(key); ok && !snap.IsStale {
		return snap.Value.(*PollSelection).Vote, nil
	}

	gen := s.store.BeginFetch(key)
	page, err := s.backend.FetchPage(ctx, records.CollectionPollVotes, backend.PageQuery{
		Where: map[string]string{
			"pollId": postID,
			"userId": viewerID,
		},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch poll vote: %w", err)
	}

	sel := &PollSelection{}
	for _, rec := range page {
		if v, ok := rec.(*records.PollVote); ok {
			sel.Vote = v
		}
	}
	s.store.CompleteFetch(key, gen, sel)
	return sel.Vote, nil
}

// pollHasOption checks the option index against any cached copy of the post.
// When no cached copy exists the index is trusted and the backend validates.
func (s *Service) pollHasOption(postID, viewerID string, option int) bool {
	for _, f := range feedFilters {
		snap, ok := s.store.Get(cache.FeedKey(f, viewerID))
		if !ok {
			continue
		}
		if post := snap.Value.(*feeds.Snapshot).FindPost(postID); post != nil {
			if post.PollOptions == nil {
				return false
			}
			return option < len(post.PollOptions)
		}
	}
	return true
}
