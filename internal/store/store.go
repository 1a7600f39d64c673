// Package store implements the append-only durable event log.
//
// Timestamps are assigned server-side under a single mutex, the only
// critical section in the engine: concurrent producers never coordinate,
// but every event gets a strictly increasing unix-nanosecond timestamp, so
// the ts column alone is a total order over the log. Reads take no lock and
// observe whatever snapshot the database returns.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/donghouse/dongometer/internal/core/db"
	"github.com/donghouse/dongometer/internal/types"
)

// Store appends and queries immutable events backed by sqlite or postgres.
type Store struct {
	q   *db.Queries
	now func() time.Time

	mu     sync.Mutex
	lastNS int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock, used by tests to control timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store over loaded queries.
func New(q *db.Queries, opts ...Option) *Store {
	s := &Store{
		q:   q,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append validates, timestamps, and durably writes a single event, returning
// it with the assigned id and timestamp. The insert completes before Append
// returns; a reported acceptance is always recoverable after a crash.
// Write failures map to types.ErrStoreUnavailable and the event is not
// accepted.
func (s *Store) Append(ctx context.Context, t types.EventType, value float64, details string) (types.Event, error) {
	if !t.Valid() {
		return types.Event{}, fmt.Errorf("append: %w: %q", types.ErrInvalidEventType, t)
	}
	if err := types.ValidateValue(value); err != nil {
		return types.Event{}, fmt.Errorf("append: %w", err)
	}

	// Single serialization point: timestamp assignment and the insert stay
	// under one lock so store order and timestamp order never diverge.
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.now().UTC().UnixNano()
	if ns <= s.lastNS {
		// Clock stalled or stepped backwards; keep timestamps strictly
		// increasing anyway.
		ns = s.lastNS + 1
	}

	var id int64
	var err error
	if s.q.DriverName() == "postgres" {
		err = s.q.Get(ctx, "insert-event-returning", &id, string(t), value, details, ns)
	} else {
		var res sql.Result
		res, err = s.q.Exec(ctx, "insert-event", string(t), value, details, ns)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		return types.Event{}, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	s.lastNS = ns

	return types.Event{
		ID:        id,
		Type:      t,
		Value:     value,
		Details:   details,
		Timestamp: time.Unix(0, ns).UTC(),
	}, nil
}

// Filter narrows a Query. Zero Since/Until mean unbounded; the range is
// half-open [Since, Until) so adjacent windows never overlap.
type Filter struct {
	Type  *types.EventType
	Since time.Time
	Until time.Time
}

// eventRow is the persisted column layout.
type eventRow struct {
	ID      int64           `db:"id"`
	Type    types.EventType `db:"type"`
	Value   float64         `db:"value"`
	Details string          `db:"details"`
	TS      int64           `db:"ts"`
}

func (r eventRow) event() types.Event {
	return types.Event{
		ID:        r.ID,
		Type:      r.Type,
		Value:     r.Value,
		Details:   r.Details,
		Timestamp: time.Unix(0, r.TS).UTC(),
	}
}

// Query returns events matching the filter in ascending timestamp order.
// An empty result is a nil error with an empty slice; absence of data is
// never an error.
func (s *Store) Query(ctx context.Context, f Filter) ([]types.Event, error) {
	since, until := rangeBounds(f.Since, f.Until)

	var rows []eventRow
	var err error
	if f.Type != nil {
		err = s.q.Select(ctx, "list-events-by-type", &rows, string(*f.Type), since, until)
	} else {
		err = s.q.Select(ctx, "list-events", &rows, since, until)
	}
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events := make([]types.Event, len(rows))
	for i, r := range rows {
		events[i] = r.event()
	}
	return events, nil
}

// PizzaTotal returns the sum of pizza event values strictly after the most
// recent reset_pizza event, or over all of history when none exists. It is a
// view over the log, recomputed on every call; there is no counter to drift.
func (s *Store) PizzaTotal(ctx context.Context) (float64, error) {
	var resetNS int64
	if err := s.q.Get(ctx, "last-pizza-reset", &resetNS); err != nil {
		return 0, fmt.Errorf("pizza total: %w", err)
	}

	var total float64
	if err := s.q.Get(ctx, "pizza-total-since", &total, resetNS); err != nil {
		return 0, fmt.Errorf("pizza total: %w", err)
	}
	return total, nil
}

// CountByType returns per-type event counts within [since, until).
// Types with no events in the range are absent from the map.
func (s *Store) CountByType(ctx context.Context, since, until time.Time) (map[types.EventType]int, error) {
	lo, hi := rangeBounds(since, until)

	var rows []struct {
		Type types.EventType `db:"type"`
		N    int             `db:"n"`
	}
	if err := s.q.Select(ctx, "count-events-in-range", &rows, lo, hi); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	counts := make(map[types.EventType]int, len(rows))
	for _, r := range rows {
		counts[r.Type] = r.N
	}
	return counts, nil
}

// rangeBounds converts an optionally-zero time range to unix-nano bounds.
func rangeBounds(since, until time.Time) (int64, int64) {
	lo := int64(math.MinInt64)
	if !since.IsZero() {
		lo = since.UnixNano()
	}
	hi := int64(math.MaxInt64)
	if !until.IsZero() {
		hi = until.UnixNano()
	}
	return lo, hi
}
