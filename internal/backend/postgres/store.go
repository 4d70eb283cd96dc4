package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"Driftline/internal/backend"
	"Driftline/internal/core/records"
)

// sortClauses whitelists the ORDER BY columns callers may request.
// Dynamic ORDER BY never interpolates caller input directly.
var sortClauses = map[string]string{
	"createdAt": "created_at",
	"voteScore": "(payload->>'voteScore')::int",
}

// whereFields whitelists the payload fields equality filters may target.
var whereFields = map[string]struct{}{
	"userId":    {},
	"postId":    {},
	"parentId":  {},
	"targetId":  {},
	"blockerId": {},
	"blockedId": {},
	"pollId":    {},
	"ownerId":   {},
}

const defaultPageLimit = 100

// Store implements backend.RemoteService on a single generic records table.
// It is the reference store backing the dev gateway and end-to-end tests;
// production clients talk to the hosted API through httpclient instead.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	hub    *hub
}

// NewStore creates a postgres-backed record store. Run Migrate before first
// use.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger,
		hub:    newHub(),
	}
}

// FetchPage retrieves one page of a collection ordered per the query.
func (s *Store) FetchPage(ctx context.Context, collection string, q backend.PageQuery) ([]records.Record, error) {
	var (
		conditions = []string{"collection = $1"}
		args       = []any{collection}
	)

	for field, value := range q.Where {
		if _, ok := whereFields[field]; !ok {
			return nil, &backend.ValidationError{Message: fmt.Sprintf("unknown filter field %q", field)}
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("payload->>'%s' = $%d", field, len(args)))
	}
	if q.CreatedAfter != nil {
		args = append(args, q.CreatedAfter.UTC())
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", len(args)))
	}

	orderBy, ok := sortClauses[q.OrderBy]
	if !ok {
		orderBy = sortClauses["createdAt"]
	}
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	limit := q.Limit
	if limit <= 0 || limit > defaultPageLimit {
		limit = defaultPageLimit
	}
	args = append(args, limit, q.Offset)

	query := fmt.Sprintf(`
		SELECT payload
		FROM records
		WHERE %s
		ORDER BY %s %s, id ASC
		LIMIT $%d OFFSET $%d
	`, strings.Join(conditions, " AND "), orderBy, direction, len(args)-1, len(args))

	return s.queryRecords(ctx, collection, query, args...)
}

// FetchByIDs retrieves specific records by id. Missing ids are absent from
// the result, not an error.
func (s *Store) FetchByIDs(ctx context.Context, collection string, ids []string) ([]records.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT payload
		FROM records
		WHERE collection = $1 AND id = ANY($2)
	`
	return s.queryRecords(ctx, collection, query, collection, pq.Array(ids))
}

// Write applies one write and publishes the change to subscribers. Inserts
// assign a server id: client temp ids never persist.
func (s *Store) Write(ctx context.Context, collection string, op backend.WriteOp, rec records.Record) (records.Record, error) {
	switch op {
	case backend.OpInsert:
		return s.insert(ctx, collection, rec)
	case backend.OpUpdate:
		return s.update(ctx, collection, rec)
	case backend.OpDelete:
		return nil, s.delete(ctx, collection, rec)
	default:
		return nil, &backend.ValidationError{Message: fmt.Sprintf("unknown write op %q", op)}
	}
}

// Subscribe returns an in-process change stream for the collection.
func (s *Store) Subscribe(ctx context.Context, collection string, pred backend.Predicate) (backend.Subscription, error) {
	return s.hub.subscribe(ctx, collection, pred), nil
}

func (s *Store) insert(ctx context.Context, collection string, rec records.Record) (records.Record, error) {
	confirmed := rec.Clone()
	if records.IsTempID(confirmed.RecordID()) {
		if err := records.AssignID(confirmed, uuid.NewString()); err != nil {
			return nil, &backend.ValidationError{Message: err.Error()}
		}
	}

	payload, err := records.Encode(confirmed)
	if err != nil {
		return nil, &backend.TransportError{Op: "insert " + collection, Err: err}
	}

	query := `
		INSERT INTO records (id, collection, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		confirmed.RecordID(), collection, payload, confirmed.RecordCreatedAt().UTC())
	if err != nil {
		return nil, mapSQLError("insert "+collection, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &backend.ValidationError{Message: "record already exists"}
	}

	s.publish(collection, backend.OpInsert, confirmed)
	return confirmed, nil
}

func (s *Store) update(ctx context.Context, collection string, rec records.Record) (records.Record, error) {
	confirmed := rec.Clone()
	payload, err := records.Encode(confirmed)
	if err != nil {
		return nil, &backend.TransportError{Op: "update " + collection, Err: err}
	}

	query := `
		UPDATE records
		SET payload = $3
		WHERE id = $1 AND collection = $2
	`
	res, err := s.db.ExecContext(ctx, query, confirmed.RecordID(), collection, payload)
	if err != nil {
		return nil, mapSQLError("update "+collection, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &backend.ValidationError{Message: "record not found"}
	}

	s.publish(collection, backend.OpUpdate, confirmed)
	return confirmed, nil
}

func (s *Store) delete(ctx context.Context, collection string, rec records.Record) error {
	query := `
		DELETE FROM records
		WHERE id = $1 AND collection = $2
	`
	res, err := s.db.ExecContext(ctx, query, rec.RecordID(), collection)
	if err != nil {
		return mapSQLError("delete "+collection, err)
	}
	// Deleting an absent record is a no-op: the client's intent is satisfied.
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("delete of absent record", "collection", collection, "id", rec.RecordID())
		return nil
	}

	s.publish(collection, backend.OpDelete, rec)
	return nil
}

func (s *Store) publish(collection string, op backend.WriteOp, rec records.Record) {
	s.hub.publish(backend.Notification{
		Op:         op,
		Collection: collection,
		Record:     rec,
		ActorID:    rec.RecordOwner(),
	})
}

func (s *Store) queryRecords(ctx context.Context, collection, query string, args ...any) ([]records.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError("query "+collection, err)
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		var payload json.RawMessage
		if err := rows.Scan(&payload); err != nil {
			return nil, mapSQLError("scan "+collection, err)
		}
		rec, err := records.Decode(collection, payload)
		if err != nil {
			s.logger.Warn("skipping undecodable record", "collection", collection, "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError("query "+collection, err)
	}
	return out, nil
}

func mapSQLError(op string, err error) error {
	return &backend.TransportError{Op: op, Err: err}
}
