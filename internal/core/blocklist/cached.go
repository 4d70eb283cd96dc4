package blocklist

import (
	"context"

	"Driftline/internal/core/cache"
)

// CachedResolver reads hidden sets through the entity cache under the
// blocklist/<viewer> key. The key is marked stale by block mutations and by
// block-change notifications, so the set is recomputed whenever either edge
// set changes.
type CachedResolver struct {
	resolver *Resolver
	store    *cache.Store
}

// NewCachedResolver wraps a resolver with cache read-through.
func NewCachedResolver(resolver *Resolver, store *cache.Store) *CachedResolver {
	return &CachedResolver{
		resolver: resolver,
		store:    store,
	}
}

// Hidden returns the viewer's hidden set, serving a fresh cached copy when
// available. On a resolver failure the configured fail-open/fail-closed
// policy applies (see Resolver).
func (c *CachedResolver) Hidden(ctx context.Context, viewerID string) (Set, error) {
	if viewerID == "" {
		return Set{}, nil
	}

	key := cache.BlocklistKey(viewerID)
	if snap, ok := c.store.Get(key); ok && !snap.IsStale {
		if set, ok := snap.Value.(Set); ok {
			return set, nil
		}
	}

	gen := c.store.BeginFetch(key)
	set, degraded, err := c.resolver.Resolve(ctx, viewerID)
	if err != nil {
		c.store.CancelFetch(key)
		return nil, err
	}
	if degraded {
		// A fail-open placeholder must not stick for the retention window;
		// leave the key uncached so the next read re-resolves.
		c.store.CancelFetch(key)
		return set, nil
	}
	c.store.CompleteFetch(key, gen, set)
	return set, nil
}
