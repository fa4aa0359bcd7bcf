package op

import "github.com/google/uuid"

// IDGenerator produces globally unique operation ids.
// Implemented by UUIDv7Generator (production) and the fixed-sequence
// generator in testutil (deterministic tests and golden traces).
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator issues time-ordered UUIDv7 ids. The time ordering is a
// debugging convenience only; nothing in the engine orders by id except
// the deterministic lexicographic tie-break, which any unique string
// scheme satisfies.
type UUIDv7Generator struct{}

// NewID returns a fresh UUIDv7 string, falling back to UUIDv4 if the
// monotonic randomness pool errors.
func (UUIDv7Generator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
