// Package types provides domain models shared across Dongometer components.
//
// Zero-dependency design: the event model and error taxonomy use only the
// standard library so every layer (store, scoring, API) can import this
// package without pulling in transport or database dependencies.
package types

import (
	"fmt"
	"math"
	"time"
)

// EventType identifies the kind of activity signal an event carries.
// The set is closed: producers classify events before submission and the
// engine rejects anything outside this set.
type EventType string

const (
	// EventChatMessage is a single chat message relayed by a bridge.
	// The event value is a weight multiplier (2 under "chaos boost").
	EventChatMessage EventType = "chat_message"

	// EventDoorOpen is a door-sensor open trigger.
	EventDoorOpen EventType = "door_open"

	// EventDoorClose is a door-sensor close trigger.
	EventDoorClose EventType = "door_close"

	// EventPizza increments the running pizza total by the event value.
	EventPizza EventType = "pizza"

	// EventResetPizza zeroes the pizza total. Administrative; carries no
	// activity weight.
	EventResetPizza EventType = "reset_pizza"
)

// EventTypes returns the closed set of valid event types in declaration order.
func EventTypes() []EventType {
	return []EventType{
		EventChatMessage,
		EventDoorOpen,
		EventDoorClose,
		EventPizza,
		EventResetPizza,
	}
}

// Valid reports whether t is in the closed event type set.
func (t EventType) Valid() bool {
	switch t {
	case EventChatMessage, EventDoorOpen, EventDoorClose, EventPizza, EventResetPizza:
		return true
	}
	return false
}

// ParseEventType validates s against the closed set.
// Returns an error wrapping ErrInvalidEventType for anything else.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
	}
	return t, nil
}

// DefaultValue is the event value used when a producer omits one.
const DefaultValue = 1.0

// ValidateValue checks that v is a finite non-negative magnitude.
// Returns an error wrapping ErrInvalidValue otherwise.
func ValidateValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: not a finite number", ErrInvalidValue)
	}
	if v < 0 {
		return fmt.Errorf("%w: negative value %v", ErrInvalidValue, v)
	}
	return nil
}

// Event is an immutable activity record. Once written to the store it is
// never mutated or deleted; every derived metric (chaos score, pizza total,
// history buckets) is recomputed from events rather than maintained as
// separate state.
type Event struct {
	// ID is unique and monotonically assigned at write time.
	ID int64 `json:"id"`

	// Type is one of the closed event type set.
	Type EventType `json:"type"`

	// Value is the event magnitude. Defaults to 1 when omitted by the
	// producer; for pizza events it is an increment, for chat messages a
	// weight multiplier.
	Value float64 `json:"value"`

	// Details is an optional free-text annotation. The engine never
	// interprets it.
	Details string `json:"details,omitempty"`

	// Timestamp is assigned by the store at ingestion time. Producers do
	// not supply timestamps; the engine is the sole ordering authority.
	Timestamp time.Time `json:"timestamp"`
}
