package blocklist

import (
	"context"
	"fmt"
	"log/slog"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

// edgePageSize matches the backend's maximum page size for block edges.
const edgePageSize = 100

// Set is the effective hidden set for a viewer: the union of users the
// viewer blocked and users who blocked the viewer. Blocking is a directed
// edge but symmetric for visibility.
type Set map[string]struct{}

// Has reports whether userID is hidden from the viewer.
func (s Set) Has(userID string) bool {
	_, ok := s[userID]
	return ok
}

// CloneValue implements cache.Value.
func (s Set) CloneValue() cache.Value {
	c := make(Set, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Resolver computes the symmetric hidden set from the backend's block edges.
// Pure derived data: no side effects, recomputed whenever either edge set
// changes (the blocklist cache key is invalidated by block mutations and
// block-change notifications).
//
// Failure policy is configurable. Fail-open (the default) returns an empty
// set on fetch failure: the product prefers occasionally showing blocked
// content over hiding a whole feed on a transient network error. Fail-closed
// propagates the error instead. Whichever is chosen applies uniformly to
// every call site.
type Resolver struct {
	backend  backend.RemoteService
	failOpen bool
	logger   *slog.Logger
}

// NewResolver creates a blocklist resolver.
func NewResolver(svc backend.RemoteService, failOpen bool, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		backend:  svc,
		failOpen: failOpen,
		logger:   logger,
	}
}

// Resolve returns the hidden set for viewerID. Under fail-open a fetch
// failure yields an empty set, a nil error, and degraded=true so callers
// know the set is a placeholder and must not cache it as authoritative;
// under fail-closed it yields the error.
func (r *Resolver) Resolve(ctx context.Context, viewerID string) (hidden Set, degraded bool, err error) {
	if viewerID == "" {
		return Set{}, false, nil
	}

	hidden = make(Set)

	outbound, err := r.fetchEdges(ctx, map[string]string{"blockerId": viewerID})
	if err != nil {
		return r.degrade(viewerID, err)
	}
	for _, b := range outbound {
		hidden[b.BlockedID] = struct{}{}
	}

	inbound, err := r.fetchEdges(ctx, map[string]string{"blockedId": viewerID})
	if err != nil {
		return r.degrade(viewerID, err)
	}
	for _, b := range inbound {
		hidden[b.BlockerID] = struct{}{}
	}

	return hidden, false, nil
}

// fetchEdges paginates through all block edges matching where.
func (r *Resolver) fetchEdges(ctx context.Context, where map[string]string) ([]*records.Block, error) {
	var edges []*records.Block
	offset := 0

	for {
		page, err := r.backend.FetchPage(ctx, records.CollectionBlocks, backend.PageQuery{
			Where:  where,
			Offset: offset,
			Limit:  edgePageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch block edges: %w", err)
		}

		for _, rec := range page {
			if block, ok := rec.(*records.Block); ok {
				edges = append(edges, block)
			}
		}

		// A short page is the termination signal.
		if len(page) < edgePageSize {
			break
		}
		offset += edgePageSize
	}

	return edges, nil
}

func (r *Resolver) degrade(viewerID string, err error) (Set, bool, error) {
	if r.failOpen {
		r.logger.Warn("blocklist resolution failed, failing open with empty set",
			"viewer", viewerID,
			"error", err)
		return Set{}, true, nil
	}
	return nil, false, err
}
