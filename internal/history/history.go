// Package history buckets the event log into fixed time windows for trend
// and leaderboard queries.
//
// Buckets are recomputed from raw events on every call rather than
// incrementally maintained. The original dashboard kept an hourly_stats
// table updated by a background thread, which drifted from the log after
// restarts; deriving buckets lazily makes drift impossible.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/donghouse/dongometer/internal/score"
	"github.com/donghouse/dongometer/internal/store"
	"github.com/donghouse/dongometer/internal/types"
)

// Bucket is one fixed-width window with its computed score.
type Bucket struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Score       float64   `json:"score"`
	Events      int       `json:"events"`
}

// Aggregator computes windowed views over the event store using the same
// scoring parameters as the live calculator.
type Aggregator struct {
	store  *store.Store
	params score.Params
}

// New creates an Aggregator.
func New(st *store.Store, params score.Params) *Aggregator {
	return &Aggregator{store: st, params: params}
}

// Buckets partitions [from, to) into consecutive width-sized windows and
// scores each one over its own events with now fixed at the window's end.
// The partition is exhaustive and non-overlapping; the final window may be
// shorter than width. An empty or inverted range yields an empty slice,
// never an error.
func (a *Aggregator) Buckets(ctx context.Context, from, to time.Time, width time.Duration) ([]Bucket, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: bucket width must be positive, got %v", types.ErrInvalidValue, width)
	}
	windows := Partition(from, to, width)
	if len(windows) == 0 {
		return []Bucket{}, nil
	}

	events, err := a.store.Query(ctx, store.Filter{Since: from, Until: to})
	if err != nil {
		return nil, err
	}

	buckets := make([]Bucket, 0, len(windows))
	i := 0
	for _, w := range windows {
		j := i
		for j < len(events) && events[j].Timestamp.Before(w.End) {
			j++
		}
		buckets = append(buckets, Bucket{
			WindowStart: w.Start,
			WindowEnd:   w.End,
			Score:       a.params.Score(events[i:j], w.End),
			Events:      j - i,
		})
		i = j
	}
	return buckets, nil
}

// Leaderboard returns the highest-scoring buckets in [from, to), sorted by
// score descending with ties broken by earlier window start. The stable sort
// over the ascending bucket order makes the tie-break deterministic. A
// non-positive topK returns all buckets.
func (a *Aggregator) Leaderboard(ctx context.Context, from, to time.Time, width time.Duration, topK int) ([]Bucket, error) {
	buckets, err := a.Buckets(ctx, from, to, width)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Score > buckets[j].Score
	})

	if topK > 0 && topK < len(buckets) {
		buckets = buckets[:topK]
	}
	return buckets, nil
}

// Window is a half-open [Start, End) span.
type Window struct {
	Start time.Time
	End   time.Time
}

// Partition splits [from, to) into consecutive width-sized windows. The
// last window is truncated at to. Returns nil when the range is empty,
// inverted, or width is non-positive.
func Partition(from, to time.Time, width time.Duration) []Window {
	if width <= 0 || !from.Before(to) {
		return nil
	}

	var windows []Window
	for start := from; start.Before(to); start = start.Add(width) {
		end := start.Add(width)
		if end.After(to) {
			end = to
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}
