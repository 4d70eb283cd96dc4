package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

// DefaultDebounceWindow bounds how often a bursty stream of change
// notifications can invalidate the same cache entry.
const DefaultDebounceWindow = 300 * time.Millisecond

// invalidation is one pending cache invalidation: either an exact key or a
// whole surface prefix.
type invalidation struct {
	key    cache.Key
	prefix string
}

func (iv invalidation) id() string {
	if iv.prefix != "" {
		return "prefix:" + iv.prefix
	}
	return "key:" + string(iv.key)
}

// Coalescer consumes change notifications from the backend subscription and
// turns them into cache invalidations. Notifications for the same target
// inside one debounce window collapse into a single invalidation, so a burst
// of remote writes costs one refetch instead of one per event.
//
// With a viewer identity set, invalidations target that viewer's keys and
// the viewer's own echoes are dropped: the mutation pipeline already applied
// and reconciled those changes locally, and invalidating on the echo would
// discard the optimistic state for no reason. Without a viewer identity (the
// shared gateway cache) invalidations widen to surface prefixes and echoes
// are kept.
type Coalescer struct {
	store    *cache.Store
	viewerID string
	window   time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer

	// onStale, when set, is invoked after each exact key is marked stale.
	// The UI layer uses it to refetch keys backing a visible view.
	onStale func(cache.Key)
}

// NewCoalescer creates a notification coalescer. A non-positive window falls
// back to the default.
func NewCoalescer(store *cache.Store, viewerID string, window time.Duration, logger *slog.Logger) *Coalescer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coalescer{
		store:    store,
		viewerID: viewerID,
		window:   window,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
	}
}

// SetStaleHook registers a callback invoked for each key after it is marked
// stale. Must be set before Run.
func (c *Coalescer) SetStaleHook(hook func(cache.Key)) {
	c.onStale = hook
}

// Run consumes the subscription until the context is cancelled or the event
// channel closes. Pending debounce timers are flushed on exit.
func (c *Coalescer) Run(ctx context.Context, sub backend.Subscription) error {
	defer c.flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-sub.Events():
			if !ok {
				return nil
			}
			c.handle(n)
		}
	}
}

// handle maps one notification to the invalidations it implies and schedules
// them.
func (c *Coalescer) handle(n backend.Notification) {
	if c.viewerID != "" && n.ActorID != "" && n.ActorID == c.viewerID {
		return
	}
	if n.Record == nil {
		return
	}

	for _, iv := range c.targetsFor(n) {
		c.schedule(iv)
	}
}

// targetsFor derives the affected cache entries from the notification's
// collection. Invalidation is deliberately coarse: a change that might
// affect a surface dirties it, and the next read refetches.
func (c *Coalescer) targetsFor(n backend.Notification) []invalidation {
	switch n.Collection {
	case records.CollectionPosts:
		return c.feedTargets()

	case records.CollectionComments:
		targets := c.feedTargets()
		if comment, ok := n.Record.(*records.Comment); ok && comment.PostID != "" {
			if c.viewerID != "" {
				targets = append(targets, invalidation{key: cache.CommentsKey(comment.PostID, c.viewerID)})
			} else {
				targets = append(targets, invalidation{prefix: "comments"})
			}
		}
		return targets

	case records.CollectionVotes, records.CollectionPollVotes:
		// Scores and option counts surface in feeds and threads alike, but
		// the vote record does not say which thread. Feeds refresh; threads
		// pick up new scores on their own refetch.
		return c.feedTargets()

	case records.CollectionBlocks:
		if c.viewerID != "" {
			block, ok := n.Record.(*records.Block)
			if !ok || (block.BlockerID != c.viewerID && block.BlockedID != c.viewerID) {
				return nil
			}
			return []invalidation{{key: cache.BlocklistKey(c.viewerID)}}
		}
		return []invalidation{{prefix: "blocklist"}}

	case records.CollectionBookmarks:
		if c.viewerID != "" {
			return []invalidation{{key: cache.BookmarksKey(c.viewerID)}}
		}
		return []invalidation{{prefix: "bookmarks"}}
	}

	return nil
}

func (c *Coalescer) feedTargets() []invalidation {
	if c.viewerID == "" {
		return []invalidation{{prefix: "feed"}}
	}
	return []invalidation{
		{key: cache.FeedKey("new", c.viewerID)},
		{key: cache.FeedKey("top", c.viewerID)},
		{key: cache.FeedKey("hot", c.viewerID)},
	}
}

// schedule arms a debounce timer for the invalidation, or lets an
// already-armed timer absorb the event.
func (c *Coalescer) schedule(iv invalidation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := iv.id()
	if _, armed := c.pending[id]; armed {
		return
	}
	c.pending[id] = time.AfterFunc(c.window, func() {
		c.fire(iv)
	})
}

// fire applies the invalidation once its debounce window elapses.
func (c *Coalescer) fire(iv invalidation) {
	c.mu.Lock()
	delete(c.pending, iv.id())
	c.mu.Unlock()

	c.apply(iv)
}

func (c *Coalescer) apply(iv invalidation) {
	if iv.prefix != "" {
		c.store.MarkStalePrefix(iv.prefix)
		c.logger.Debug("cache surface invalidated by remote change", "surface", iv.prefix)
		return
	}

	c.store.MarkStale(iv.key)
	if c.onStale != nil {
		c.onStale(iv.key)
	}
	c.logger.Debug("cache key invalidated by remote change", "key", string(iv.key))
}

// flush stops pending timers. Invalidations lost at shutdown are harmless;
// the cache's retention TTL bounds staleness anyway.
func (c *Coalescer) flush() {
	c.mu.Lock()
	for _, t := range c.pending {
		t.Stop()
	}
	c.pending = make(map[string]*time.Timer)
	c.mu.Unlock()
}
