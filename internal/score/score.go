// Package score derives the chaos score from recent events.
//
// The score is a pure function of the event log: weighted contributions of
// events inside a trailing window, linearly decayed by age, pushed through a
// saturating normalization into [0, 100]. Nothing here is accumulated; the
// same events and the same clock always produce the same score.
package score

import (
	"math"
	"time"

	"github.com/donghouse/dongometer/internal/types"
)

// Defaults carried over from the space's empirically tuned dashboard:
// chat counted double for five minutes, doors counted five-fold for ten.
// One window with per-type weights subsumes the original per-type windows.
const (
	DefaultWindow     = 15 * time.Minute
	DefaultSaturation = 25.0
)

// Params tune the score. All values are configuration; nothing is hardcoded
// into the formula so the weights can be retuned without code changes.
type Params struct {
	// Window is the trailing span over which events contribute.
	Window time.Duration

	// Weights maps event types to their base contribution weight. Types
	// absent from the map contribute nothing (reset_pizza stays out on
	// purpose: resets are administrative, not activity).
	Weights map[types.EventType]float64

	// Saturation is the K in 100*raw/(raw+K). Larger K flattens the curve;
	// non-positive K falls back to a hard clamp at 100.
	Saturation float64
}

// DefaultParams returns the tuning the original dashboard converged on.
func DefaultParams() Params {
	return Params{
		Window: DefaultWindow,
		Weights: map[types.EventType]float64{
			types.EventChatMessage: 2,
			types.EventDoorOpen:    5,
			types.EventDoorClose:   1,
			types.EventPizza:       2,
		},
		Saturation: DefaultSaturation,
	}
}

// Score computes the chaos score for events as observed at now.
//
// Per event: weight(type) * value * decay(now - timestamp), with linear
// decay from 1 at age zero to 0 at Window. Events from the future (clock
// skew between caller and store) decay as 1 rather than erroring. The raw
// sum saturates through 100*raw/(raw+K), so a flood of ten thousand pizza
// events still lands below 100, and a sum that overflows float64 scores
// exactly 100. Empty input scores 0.
func (p Params) Score(events []types.Event, now time.Time) float64 {
	if p.Window <= 0 {
		return 0
	}

	var raw float64
	for _, ev := range events {
		w := p.Weights[ev.Type]
		if w == 0 {
			continue
		}

		elapsed := now.Sub(ev.Timestamp)
		var decay float64
		switch {
		case elapsed <= 0:
			decay = 1
		case elapsed >= p.Window:
			decay = 0
		default:
			decay = 1 - float64(elapsed)/float64(p.Window)
		}

		raw += w * ev.Value * decay
	}

	if raw <= 0 {
		return 0
	}
	if p.Saturation <= 0 {
		if raw > 100 {
			return 100
		}
		return raw
	}
	// Values are only validated finite, so the weighted sum can overflow to
	// +Inf, where raw/(raw+K) would be NaN. An overflowed window is maximal
	// chaos. The ratio is grouped before scaling so 100*raw cannot overflow
	// on its own for large finite sums.
	if math.IsInf(raw, 1) {
		return 100
	}
	return 100 * (raw / (raw + p.Saturation))
}
