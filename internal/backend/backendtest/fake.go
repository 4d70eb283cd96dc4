package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"Driftline/internal/backend"
	"Driftline/internal/core/records"
)

// WriteCall records one Write invocation for assertions.
type WriteCall struct {
	Collection string
	Op         backend.WriteOp
	Record     records.Record
}

// Fake is an in-memory backend.RemoteService for tests. Records are held
// per collection; FetchPage applies equality filters, ordering, and
// offset/limit the way the real transports do.
type Fake struct {
	mu         sync.Mutex
	data       map[string][]records.Record
	calls      []WriteCall
	fetchCalls int

	// FetchErr, when set, fails every fetch.
	FetchErr error
	// WriteErr, when set, fails every write after recording the call.
	WriteErr error

	subs []*fakeSubscription
}

// NewFake creates an empty fake backend.
func NewFake() *Fake {
	return &Fake{data: make(map[string][]records.Record)}
}

// Seed adds records to a collection.
func (f *Fake) Seed(collection string, recs ...records.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[collection] = append(f.data[collection], recs...)
}

// FetchPageCalls returns how many page fetches were issued.
func (f *Fake) FetchPageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// WriteCalls returns every recorded write in order.
func (f *Fake) WriteCalls() []WriteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]WriteCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) FetchPage(ctx context.Context, collection string, q backend.PageQuery) ([]records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}

	var matched []records.Record
	for _, rec := range f.data[collection] {
		if matchesWhere(rec, q.Where) && matchesWindow(rec, q) {
			matched = append(matched, rec)
		}
	}

	if q.OrderBy == "voteScore" {
		sort.SliceStable(matched, func(i, j int) bool {
			si, sj := voteScore(matched[i]), voteScore(matched[j])
			if q.Descending {
				return si > sj
			}
			return si < sj
		})
	} else {
		sort.SliceStable(matched, func(i, j int) bool {
			ti, tj := matched[i].RecordCreatedAt(), matched[j].RecordCreatedAt()
			if q.Descending {
				return ti.After(tj)
			}
			return ti.Before(tj)
		})
	}

	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]records.Record, len(matched))
	for i, rec := range matched {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (f *Fake) FetchByIDs(ctx context.Context, collection string, ids []string) ([]records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FetchErr != nil {
		return nil, f.FetchErr
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []records.Record
	for _, rec := range f.data[collection] {
		if _, ok := want[rec.RecordID()]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (f *Fake) Write(ctx context.Context, collection string, op backend.WriteOp, rec records.Record) (records.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, WriteCall{Collection: collection, Op: op, Record: rec.Clone()})

	if f.WriteErr != nil {
		f.mu.Unlock()
		return nil, f.WriteErr
	}

	var confirmed records.Record
	switch op {
	case backend.OpInsert:
		confirmed = rec.Clone()
		if records.IsTempID(confirmed.RecordID()) {
			if err := records.AssignID(confirmed, uuid.NewString()); err != nil {
				f.mu.Unlock()
				return nil, err
			}
		}
		f.data[collection] = append(f.data[collection], confirmed)

	case backend.OpUpdate:
		confirmed = rec.Clone()
		replaced := false
		for i, existing := range f.data[collection] {
			if existing.RecordID() == rec.RecordID() {
				f.data[collection][i] = confirmed
				replaced = true
				break
			}
		}
		if !replaced {
			f.mu.Unlock()
			return nil, &backend.ValidationError{Message: fmt.Sprintf("record %s not found", rec.RecordID())}
		}

	case backend.OpDelete:
		kept := f.data[collection][:0]
		for _, existing := range f.data[collection] {
			if existing.RecordID() != rec.RecordID() {
				kept = append(kept, existing)
			}
		}
		f.data[collection] = kept
	}
	f.mu.Unlock()

	f.publish(backend.Notification{
		Op:         op,
		Collection: collection,
		Record:     rec,
		ActorID:    rec.RecordOwner(),
	})

	if op == backend.OpDelete {
		return nil, nil
	}
	return confirmed.Clone(), nil
}

func (f *Fake) Subscribe(ctx context.Context, collection string, pred backend.Predicate) (backend.Subscription, error) {
	sub := &fakeSubscription{
		collection: collection,
		events:     make(chan backend.Notification, 64),
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

// Publish pushes a notification to matching subscribers, simulating a
// server-side change.
func (f *Fake) Publish(n backend.Notification) {
	f.publish(n)
}

func (f *Fake) publish(n backend.Notification) {
	f.mu.Lock()
	subs := make([]*fakeSubscription, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, sub := range subs {
		if sub.collection != n.Collection {
			continue
		}
		select {
		case sub.events <- n:
		default:
		}
	}
}

type fakeSubscription struct {
	collection string
	events     chan backend.Notification
	closeOnce  sync.Once
}

func (s *fakeSubscription) Events() <-chan backend.Notification { return s.events }

func (s *fakeSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

func matchesWhere(rec records.Record, where map[string]string) bool {
	if len(where) == 0 {
		return true
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	for field, want := range where {
		got, ok := fields[field]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func matchesWindow(rec records.Record, q backend.PageQuery) bool {
	if q.CreatedAfter == nil {
		return true
	}
	return rec.RecordCreatedAt().After(*q.CreatedAfter)
}

func voteScore(rec records.Record) int {
	switch r := rec.(type) {
	case *records.Post:
		return r.VoteScore
	case *records.Comment:
		return r.VoteScore
	}
	return 0
}
