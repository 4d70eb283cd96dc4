package votes

import (
	"context"
	"fmt"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

// statePageSize matches the backend's maximum page size for vote fetches.
const statePageSize = 100

// State is the cached value for a viewer's own votes, keyed by target id.
// The mutation pipeline reads it to resolve toggles in O(1) and rewrites it
// optimistically.
type State struct {
	ByTarget map[string]*records.Vote
}

// NewState creates an empty vote state.
func NewState() *State {
	return &State{ByTarget: make(map[string]*records.Vote)}
}

// CloneValue implements cache.Value with a deep copy.
func (s *State) CloneValue() cache.Value {
	c := &State{ByTarget: make(map[string]*records.Vote, len(s.ByTarget))}
	for k, v := range s.ByTarget {
		c.ByTarget[k] = v.Clone().(*records.Vote)
	}
	return c
}

// Get returns the viewer's vote on target, or nil.
func (s *State) Get(targetID string) *records.Vote {
	return s.ByTarget[targetID]
}

// Set records a vote on its target.
func (s *State) Set(v *records.Vote) {
	s.ByTarget[v.TargetID] = v
}

// Remove drops the vote on target.
func (s *State) Remove(targetID string) {
	delete(s.ByTarget, targetID)
}

// LoadState fetches a viewer's complete vote set from the backend, reading
// through the cache under the votes/<viewer> key.
func LoadState(ctx context.Context, store *cache.Store, svc backend.RemoteService, viewerID string) (*State, error) {
	key := cache.VoteStateKey(viewerID)
	if snap, ok := store.Get(key); ok && !snap.IsStale {
		return snap.Value.(*State), nil
	}

	gen := store.BeginFetch(key)
	state := NewState()
	offset := 0
	for {
		page, err := svc.FetchPage(ctx, records.CollectionVotes, backend.PageQuery{
			Where:  map[string]string{"userId": viewerID},
			Offset: offset,
			Limit:  statePageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch votes: %w", err)
		}
		for _, rec := range page {
			if v, ok := rec.(*records.Vote); ok {
				state.Set(v)
			}
		}
		if len(page) < statePageSize {
			break
		}
		offset += statePageSize
	}

	store.CompleteFetch(key, gen, state)
	return state, nil
}
