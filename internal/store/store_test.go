package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donghouse/dongometer/internal/core/db"
	"github.com/donghouse/dongometer/internal/types"
)

var baseTime = time.Date(2025, 6, 14, 3, 0, 0, 0, time.UTC)

func newTestQueries(t *testing.T) *db.Queries {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	require.NoError(t, db.MigrateUp(sqldb))
	queries, err := db.LoadQueries(sqldb)
	require.NoError(t, err)
	return queries
}

// steppingClock returns baseTime + step per call, guarded for concurrent use.
type steppingClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func TestAppendAndQueryRoundtrip(t *testing.T) {
	ctx := context.Background()
	st := New(newTestQueries(t), WithClock(func() time.Time { return baseTime }))

	ev, err := st.Append(ctx, types.EventChatMessage, 2, "chaos boost")
	require.NoError(t, err)
	assert.Greater(t, ev.ID, int64(0))
	assert.Equal(t, types.EventChatMessage, ev.Type)
	assert.Equal(t, 2.0, ev.Value)
	assert.Equal(t, "chaos boost", ev.Details)
	assert.Equal(t, baseTime, ev.Timestamp)

	got, err := st.Query(ctx, Filter{
		Since: ev.Timestamp,
		Until: ev.Timestamp.Add(time.Nanosecond),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev, got[0])
}

func TestAppendRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	st := New(newTestQueries(t))

	_, err := st.Append(ctx, types.EventType("explode"), 1, "")
	assert.ErrorIs(t, err, types.ErrInvalidEventType)

	_, err = st.Append(ctx, types.EventPizza, -1, "")
	assert.ErrorIs(t, err, types.ErrInvalidValue)

	// Rejected events never reach the log.
	got, err := st.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTimestampsStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()

	// Frozen clock: every append sees the same wall time, the store must
	// still hand out strictly increasing timestamps.
	st := New(newTestQueries(t), WithClock(func() time.Time { return baseTime }))

	var last time.Time
	for i := 0; i < 5; i++ {
		ev, err := st.Append(ctx, types.EventDoorOpen, 1, "")
		require.NoError(t, err)
		if i > 0 {
			assert.True(t, ev.Timestamp.After(last), "timestamp %v not after %v", ev.Timestamp, last)
		}
		last = ev.Timestamp
	}
}

func TestQueryHalfOpenInterval(t *testing.T) {
	ctx := context.Background()
	clock := &steppingClock{t: baseTime, step: time.Minute}
	st := New(newTestQueries(t), WithClock(clock.Now))

	var events []types.Event
	for i := 0; i < 3; i++ {
		ev, err := st.Append(ctx, types.EventChatMessage, 1, "")
		require.NoError(t, err)
		events = append(events, ev)
	}

	// [t0, t2) includes t0 and t1, excludes t2.
	got, err := st.Query(ctx, Filter{Since: events[0].Timestamp, Until: events[2].Timestamp})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, events[0].ID, got[0].ID)
	assert.Equal(t, events[1].ID, got[1].ID)

	// Adjacent windows partition the log with no overlap.
	left, err := st.Query(ctx, Filter{Since: events[0].Timestamp, Until: events[1].Timestamp})
	require.NoError(t, err)
	right, err := st.Query(ctx, Filter{Since: events[1].Timestamp, Until: events[2].Timestamp.Add(time.Nanosecond)})
	require.NoError(t, err)
	assert.Len(t, left, 1)
	assert.Len(t, right, 2)
}

func TestQueryByType(t *testing.T) {
	ctx := context.Background()
	clock := &steppingClock{t: baseTime, step: time.Second}
	st := New(newTestQueries(t), WithClock(clock.Now))

	for _, et := range []types.EventType{
		types.EventChatMessage,
		types.EventDoorOpen,
		types.EventChatMessage,
		types.EventPizza,
	} {
		_, err := st.Append(ctx, et, 1, "")
		require.NoError(t, err)
	}

	chat := types.EventChatMessage
	got, err := st.Query(ctx, Filter{Type: &chat})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, ev := range got {
		assert.Equal(t, types.EventChatMessage, ev.Type)
	}
}

func TestQueryEmptyRange(t *testing.T) {
	ctx := context.Background()
	st := New(newTestQueries(t))

	got, err := st.Query(ctx, Filter{Since: baseTime, Until: baseTime.Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPizzaTotal(t *testing.T) {
	ctx := context.Background()
	clock := &steppingClock{t: baseTime, step: time.Second}
	st := New(newTestQueries(t), WithClock(clock.Now))

	total, err := st.PizzaTotal(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = st.Append(ctx, types.EventPizza, 3, "")
	require.NoError(t, err)
	_, err = st.Append(ctx, types.EventPizza, 9001, "")
	require.NoError(t, err)

	total, err = st.PizzaTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9004.0, total)

	_, err = st.Append(ctx, types.EventResetPizza, 1, "")
	require.NoError(t, err)

	total, err = st.PizzaTotal(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = st.Append(ctx, types.EventPizza, 1, "")
	require.NoError(t, err)

	total, err = st.PizzaTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, total)
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	st := New(newTestQueries(t))

	const producers = 10
	const perProducer = 20

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if _, err := st.Append(ctx, types.EventChatMessage, 1, ""); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := st.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, producers*perProducer)

	seen := make(map[int64]bool, len(got))
	for i, ev := range got {
		assert.False(t, seen[ev.ID], "duplicate id %d", ev.ID)
		seen[ev.ID] = true
		if i > 0 {
			assert.True(t, ev.Timestamp.After(got[i-1].Timestamp),
				"timestamps not strictly increasing at index %d", i)
		}
	}
}
