package backend

import (
	"context"
	"time"

	"Driftline/internal/core/records"
)

// WriteOp is the closed set of remote write operations.
type WriteOp string

const (
	OpInsert WriteOp = "insert"
	OpUpdate WriteOp = "update"
	OpDelete WriteOp = "delete"
)

// PageQuery describes one page of a collection fetch. Where holds equality
// predicates on record fields; CreatedAfter restricts to a trailing window.
// OrderBy must be one of the fields the transport whitelists ("createdAt",
// "voteScore").
type PageQuery struct {
	Where        map[string]string
	CreatedAfter *time.Time
	OrderBy      string
	Descending   bool
	Offset       int
	Limit        int
}

// Predicate scopes a subscription to matching records.
type Predicate struct {
	Where map[string]string
}

// Notification is one server-pushed change event. ActorID identifies the user
// whose write produced the change, so a viewer's own echoes can be dropped.
type Notification struct {
	Op         WriteOp
	Collection string
	Record     records.Record
	ActorID    string
}

// Subscription is a cancellable stream of change notifications.
// Events is closed after Close or when the transport drops.
type Subscription interface {
	Events() <-chan Notification
	Close() error
}

// RemoteService is the transport-agnostic contract the sync layer requires
// from the hosted backend. Implementations: httpclient (production transport)
// and postgres (reference store for the dev gateway and end-to-end tests).
//
// Write returns the server-confirmed record for inserts and updates, nil for
// deletes. Failures follow the taxonomy in errors.go: TransportError,
// ValidationError (server message carried verbatim), AuthError.
type RemoteService interface {
	FetchPage(ctx context.Context, collection string, q PageQuery) ([]records.Record, error)
	FetchByIDs(ctx context.Context, collection string, ids []string) ([]records.Record, error)
	Write(ctx context.Context, collection string, op WriteOp, rec records.Record) (records.Record, error)
	Subscribe(ctx context.Context, collection string, pred Predicate) (Subscription, error)
}
