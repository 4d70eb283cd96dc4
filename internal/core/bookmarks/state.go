package bookmarks

import (
	"context"
	"fmt"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

const statePageSize = 100

// State is the cached value for a viewer's saved posts, keyed by post id.
type State struct {
	ByPost map[string]*records.Bookmark
}

// NewState creates an empty bookmark state.
func NewState() *State {
	return &State{ByPost: make(map[string]*records.Bookmark)}
}

// CloneValue implements cache.Value with a deep copy.
func (s *State) CloneValue() cache.Value {
	c := &State{ByPost: make(map[string]*records.Bookmark, len(s.ByPost))}
	for k, v := range s.ByPost {
		c.ByPost[k] = v.Clone().(*records.Bookmark)
	}
	return c
}

// Get returns the viewer's bookmark on a post, or nil.
func (s *State) Get(postID string) *records.Bookmark {
	return s.ByPost[postID]
}

// Set records a bookmark.
func (s *State) Set(b *records.Bookmark) {
	s.ByPost[b.PostID] = b
}

// Remove drops the bookmark on a post.
func (s *State) Remove(postID string) {
	delete(s.ByPost, postID)
}

// LoadState fetches a viewer's bookmarks from the backend, reading through
// the cache under the bookmarks/<viewer> key.
func LoadState(ctx context.Context, store *cache.Store, svc backend.RemoteService, viewerID string) (*State, error) {
	key := cache.BookmarksKey(viewerID)
	if snap, ok := store.Get(key); ok && !snap.IsStale {
		return snap.Value.(*State), nil
	}

	gen := store.BeginFetch(key)
	state := NewState()
	offset := 0
	for {
		page, err := svc.FetchPage(ctx, records.CollectionBookmarks, backend.PageQuery{
			Where:  map[string]string{"userId": viewerID},
			Offset: offset,
			Limit:  statePageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch bookmarks: %w", err)
		}
		for _, rec := range page {
			if b, ok := rec.(*records.Bookmark); ok {
				state.Set(b)
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
