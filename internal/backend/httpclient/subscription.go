package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Driftline/internal/backend"
	"Driftline/internal/core/records"
)

const (
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
	pingTimeout   = 10 * time.Second
	reconnectWait = 5 * time.Second
	eventBuffer   = 64
)

// wireEvent is one change notification as sent by the server.
type wireEvent struct {
	Op         string          `json:"op"`
	Collection string          `json:"collection"`
	ActorID    string          `json:"actorId"`
	Record     json.RawMessage `json:"record"`
}

// subscription is a websocket-backed change stream. It reconnects on read
// errors until closed or the context ends.
type subscription struct {
	events    chan backend.Notification
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan backend.Notification { return s.events }

func (s *subscription) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

// Subscribe opens a change stream for one collection. The predicate's
// equality filters are forwarded as query parameters so the server only
// pushes matching records.
func (c *Client) Subscribe(ctx context.Context, collection string, pred backend.Predicate) (backend.Subscription, error) {
	wsURL, err := c.subscribeURL(collection, pred)
	if err != nil {
		return nil, &backend.TransportError{Op: "subscribe " + collection, Err: err}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		events: make(chan backend.Notification, eventBuffer),
		cancel: cancel,
	}

	go sub.run(subCtx, c, wsURL, collection)
	return sub, nil
}

// subscribeURL derives the websocket endpoint from the API base URL.
func (c *Client) subscribeURL(collection string, pred backend.Predicate) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/subscribe/" + url.PathEscape(collection)

	params := url.Values{}
	for field, value := range pred.Where {
		params.Set(field, value)
	}
	if c.authToken != "" {
		params.Set("token", c.authToken)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// run holds the connection open, reconnecting on errors, until ctx ends.
func (sub *subscription) run(ctx context.Context, c *Client, wsURL, collection string) {
	defer close(sub.events)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := sub.connect(ctx, c, wsURL, collection); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("subscription connection dropped, reconnecting",
					"collection", collection,
					"error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectWait):
				}
			}
		}
	}
}

// connect establishes the websocket connection and processes events until a
// read error. Pings keep the connection alive; a missed pong trips the read
// deadline.
func (sub *subscription) connect(ctx context.Context, c *Client, wsURL, collection string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial subscription: %w", err)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	done := make(chan struct{})
	var closeOnce sync.Once

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(pingTimeout)); err != nil {
					closeOnce.Do(func() { close(done) })
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()
	defer closeOnce.Do(func() { close(done) })

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		var ev wireEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			c.logger.Warn("failed to parse change event", "error", err)
			continue
		}
		if ev.Collection == "" {
			ev.Collection = collection
		}

		rec, err := records.Decode(ev.Collection, ev.Record)
		if err != nil {
			c.logger.Warn("failed to decode change event record",
				"collection", ev.Collection,
				"error", err)
			continue
		}

		n := backend.Notification{
			Op:         backend.WriteOp(ev.Op),
			Collection: ev.Collection,
			Record:     rec,
			ActorID:    ev.ActorID,
		}
		select {
		case sub.events <- n:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Slow consumer: drop rather than block the read loop. The
			// coalescer invalidates coarsely, so a dropped event at worst
			// delays one refetch.
		}
	}
}
