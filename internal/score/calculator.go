package score

import (
	"context"
	"sync"
	"time"

	"github.com/donghouse/dongometer/internal/store"
	"github.com/donghouse/dongometer/internal/types"
)

// Calculator binds Params to the event store and answers "what is the chaos
// score right now". Results may be cached for a short TTL; ingestion
// invalidates the cache on every accepted event, so the cache only ever
// shortens repeated dashboard polls, never masks new activity.
type Calculator struct {
	store  *store.Store
	params Params
	ttl    time.Duration

	mu         sync.Mutex
	cached     float64
	cacheUntil time.Time
}

// NewCalculator creates a Calculator. A non-positive ttl disables caching
// and every Current call recomputes from the store.
func NewCalculator(st *store.Store, params Params, ttl time.Duration) *Calculator {
	return &Calculator{
		store:  st,
		params: params,
		ttl:    ttl,
	}
}

// Params returns the tuning the calculator was built with.
func (c *Calculator) Params() Params {
	return c.params
}

// Current returns the chaos score at now, in [0, 100]. It queries the
// trailing window from the store and applies Params.Score; with caching
// disabled it is a pure function of the log.
func (c *Calculator) Current(ctx context.Context, now time.Time) (float64, error) {
	if c.ttl > 0 {
		c.mu.Lock()
		if now.Before(c.cacheUntil) {
			v := c.cached
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()
	}

	events, err := c.windowEvents(ctx, now)
	if err != nil {
		return 0, err
	}
	s := c.params.Score(events, now)

	if c.ttl > 0 {
		c.mu.Lock()
		c.cached = s
		c.cacheUntil = now.Add(c.ttl)
		c.mu.Unlock()
	}
	return s, nil
}

// Invalidate drops the cached score. Called by ingestion after every append.
func (c *Calculator) Invalidate() {
	c.mu.Lock()
	c.cacheUntil = time.Time{}
	c.mu.Unlock()
}

// WindowCounts returns per-type event counts inside the scoring window,
// the generalized form of the old chat-velocity and door-events gauges.
func (c *Calculator) WindowCounts(ctx context.Context, now time.Time) (map[types.EventType]int, error) {
	return c.store.CountByType(ctx, now.Add(-c.params.Window), now.Add(time.Nanosecond))
}

// windowEvents fetches the trailing window [now-W, now]. The store range is
// half-open, so the upper bound sits one nanosecond past now to include an
// event stamped at exactly now.
func (c *Calculator) windowEvents(ctx context.Context, now time.Time) ([]types.Event, error) {
	return c.store.Query(ctx, store.Filter{
		Since: now.Add(-c.params.Window),
		Until: now.Add(time.Nanosecond),
	})
}
