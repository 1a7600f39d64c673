package types

import "errors"

// Sentinel errors for Dongometer operations. Callers distinguish the
// rejection taxonomy with errors.Is; the HTTP layer maps these to status
// codes and response discriminators.
var (
	// ErrInvalidEventType indicates a type outside the closed event set.
	// The event is rejected, not stored.
	ErrInvalidEventType = errors.New("invalid event type")

	// ErrInvalidValue indicates a non-finite or negative event value.
	// The event is rejected, not stored.
	ErrInvalidValue = errors.New("invalid event value")

	// ErrStoreUnavailable indicates the durable write failed. The event is
	// not accepted and the producer is responsible for retrying; the engine
	// never reports an event accepted without a completed write.
	ErrStoreUnavailable = errors.New("event store unavailable")
)
