package mutations

import (
	"context"
	"fmt"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

// BlockUserRequest contains parameters for blocking a user.
type BlockUserRequest struct {
	ViewerID  string
	BlockedID string
}

// UnblockUserRequest contains parameters for removing a block edge.
type UnblockUserRequest struct {
	ViewerID  string
	BlockedID string
}

// BlockUser adds blockedID to the viewer's hidden set optimistically and
// creates the block edge remotely. Feeds and comment threads are marked
// stale so blocked content disappears on the next read.
func (s *Service) BlockUser(ctx context.Context, req BlockUserRequest) error {
	if req.ViewerID == "" {
		return ErrViewerRequired
	}
	if req.BlockedID == "" {
		return ErrTargetRequired
	}
	if req.ViewerID == req.BlockedID {
		return ErrSelfBlock
	}

	key := cache.BlocklistKey(req.ViewerID)
	block := &records.Block{
		ID:        records.NewTempID(),
		BlockerID: req.ViewerID,
		BlockedID: req.BlockedID,
		CreatedAt: time.Now().UTC(),
	}

	m := Mutation{
		Name: "block.create",
		Keys: []cache.Key{key},
		Apply: func(tx *Txn) {
			hidden := blocklist.Set{}
			if v, ok := tx.Get(key); ok {
				hidden = v.(blocklist.Set)
			}
			hidden[req.BlockedID] = struct{}{}
			tx.Set(key, hidden)
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return s.backend.Write(ctx, records.CollectionBlocks, backend.OpInsert, block)
		},
		// The hidden set already contains the blocked id; the confirmed edge
		// record carries nothing the set needs.
		StaleSurfaces: []string{"feed", "comments"},
	}

	_, err := s.pipeline.Run(ctx, m)
	return err
}

// UnblockUser removes the viewer's block edge to blockedID. The edge record
// is looked up remotely first since the cached hidden set does not retain
// edge ids.
func (s *Service) UnblockUser(ctx context.Context, req UnblockUserRequest) error {
	if req.ViewerID == "" {
		return ErrViewerRequired
	}
	if req.BlockedID == "" {
		return ErrTargetRequired
	}

	edge, err := s.findBlockEdge(ctx, req.ViewerID, req.BlockedID)
	if err != nil {
		return err
	}
	if edge == nil {
		return nil
	}

	key := cache.BlocklistKey(req.ViewerID)

	m := Mutation{
		Name: "block.delete",
		Keys: []cache.Key{key},
		Apply: func(tx *Txn) {
			if v, ok := tx.Get(key); ok {
				hidden := v.(blocklist.Set)
				delete(hidden, req.BlockedID)
				tx.Set(key, hidden)
			}
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return s.backend.Write(ctx, records.CollectionBlocks, backend.OpDelete, edge)
		},
		StaleSurfaces: []string{"feed", "comments"},
	}

	_, err = s.pipeline.Run(ctx, m)
	return err
}

// findBlockEdge fetches the viewer's outbound block edge to blockedID, or
// nil when none exists.
func (s *Service) findBlockEdge(ctx context.Context, viewerID, blockedID string) (*records.Block, error) {
	page, err := s.backend.FetchPage(ctx, records.CollectionBlocks, backend.PageQuery{
		Where: map[string]string{
			"blockerId": viewerID,
			"blockedId": blockedID,
		},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up block edge: %w", err)
	}
	for _, rec := range page {
		if b, ok := rec.(*records.Block); ok {
			return b, nil
		}
	}
	return nil, nil
}
