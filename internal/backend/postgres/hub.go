package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"Driftline/internal/backend"
	"Driftline/internal/core/records"
)

const subscriberBuffer = 64

// hub fans out write notifications to in-process subscribers. The reference
// store has no websocket transport: clients embedded in the same process
// subscribe directly.
type hub struct {
	mu   sync.Mutex
	subs map[*hubSubscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*hubSubscription]struct{})}
}

// hubSubscription implements backend.Subscription over a buffered channel.
// A slow consumer drops events rather than blocking writers.
type hubSubscription struct {
	hub        *hub
	collection string
	pred       backend.Predicate

	events    chan backend.Notification
	closeOnce sync.Once
}

func (s *hubSubscription) Events() <-chan backend.Notification { return s.events }

func (s *hubSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
		close(s.events)
	})
	return nil
}

func (h *hub) subscribe(ctx context.Context, collection string, pred backend.Predicate) *hubSubscription {
	sub := &hubSubscription{
		hub:        h,
		collection: collection,
		pred:       pred,
		events:     make(chan backend.Notification, subscriberBuffer),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}
	return sub
}

func (h *hub) remove(sub *hubSubscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (h *hub) publish(n backend.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if sub.collection != n.Collection {
			continue
		}
		if !matches(n.Record, sub.pred) {
			continue
		}
		select {
		case sub.events <- n:
		default:
		}
	}
}

// matches evaluates the predicate's equality filters against the record's
// JSON field values.
func matches(rec records.Record, pred backend.Predicate) bool {
	if len(pred.Where) == 0 {
		return true
	}

	raw, err := records.Encode(rec)
	if err != nil {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}

	for field, want := range pred.Where {
		got, ok := fields[field]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}
