package engine

import (
	"time"

	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/clock"
	"github.com/slate-hq/slate/internal/op"
)

// ElementState is the per-element projection cache entry kept for
// conflict-detection heuristics (previous toucher, previous stamps).
type ElementState struct {
	LastUserID    string
	LastLamport   int64
	LastTimestamp time.Time
}

// TransformContext is the per-session state the engine works against:
// the session's merged view of every clock seen so far, the highest
// Lamport stamp, the monotonic canvas version, locally issued but
// unacknowledged operations, and the element projection cache.
//
// The context is owned by the session layer. Update is its only mutation
// path and is called exactly once per accepted operation - never for a
// rejected one.
type TransformContext struct {
	CanvasVersion      int64
	CurrentVectorClock clock.VectorClock
	LamportClock       int64
	PendingOperations  []op.Operation
	ElementStates      map[string]ElementState
}

// NewContext creates a context at version zero with all known replicas
// initialized in the vector clock.
func NewContext(knownReplicas ...string) TransformContext {
	return TransformContext{
		CurrentVectorClock: clock.New(knownReplicas...),
		PendingOperations:  []op.Operation{},
		ElementStates:      make(map[string]ElementState),
	}
}

// Update folds an accepted operation into the context: the operation's
// vector clock is merged into the session clock, the Lamport clock rises
// to the max of current and the operation's, and the canvas version
// advances by one. The element projection cache records the operation as
// its target's latest touch.
func (c *TransformContext) Update(o op.Operation) {
	c.CurrentVectorClock = c.CurrentVectorClock.Merge(o.VectorClock)
	if o.Lamport > c.LamportClock {
		c.LamportClock = o.Lamport
	}
	c.CanvasVersion++

	if c.ElementStates == nil {
		c.ElementStates = make(map[string]ElementState)
	}
	c.ElementStates[o.ElementID] = ElementState{
		LastUserID:    o.UserID,
		LastLamport:   o.Lamport,
		LastTimestamp: o.Timestamp,
	}
}

// Acknowledge drops a locally issued operation from the pending buffer
// once the session learns every replica has folded it.
func (c *TransformContext) Acknowledge(operationID string) {
	for i, p := range c.PendingOperations {
		if p.ID == operationID {
			c.PendingOperations = append(c.PendingOperations[:i], c.PendingOperations[i+1:]...)
			return
		}
	}
}

// Draft carries the caller-supplied payload for a new local operation.
// Fields irrelevant to the drafted type are left zero.
type Draft struct {
	Type        op.Type
	ElementID   string
	ElementType string
	Data        attr.Map
	Style       attr.Map
	Position    *op.Position
	Bounds      *op.Bounds
	ZIndex      *int
}

// CreateOperation derives a new well-formed operation from the context's
// current clocks without mutating the context: the issuer's vector clock
// entry is advanced by one and the Lamport stamp by one on the returned
// operation only. The context itself advances when the operation is
// accepted, via Update.
func (c *TransformContext) CreateOperation(d Draft, userID string, gen op.IDGenerator, now time.Time) op.Operation {
	return op.Operation{
		ID:          gen.NewID(),
		Type:        d.Type,
		ElementID:   d.ElementID,
		UserID:      userID,
		ElementType: d.ElementType,
		Data:        d.Data.Clone(),
		Style:       d.Style.Clone(),
		Position:    clonePosition(d.Position),
		Bounds:      cloneBounds(d.Bounds),
		ZIndex:      cloneZIndex(d.ZIndex),
		Timestamp:   now,
		Version:     c.CanvasVersion,
		VectorClock: c.CurrentVectorClock.Increment(userID),
		Lamport:     c.LamportClock + 1,
	}
}

func clonePosition(p *op.Position) *op.Position {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

func cloneBounds(b *op.Bounds) *op.Bounds {
	if b == nil {
		return nil
	}
	out := *b
	return &out
}

func cloneZIndex(z *int) *int {
	if z == nil {
		return nil
	}
	out := *z
	return &out
}

// ReplicaTrustState tracks advisory wall-clock skew per replica. It
// replaces the source material's module-level skew caches with an
// explicit value owned by the session layer, keeping the transform core
// free of hidden global state.
//
// Skew is observability input only: ordering decisions never consult
// wall-clock time, so a skewed replica is logged, not penalized.
type ReplicaTrustState struct {
	skew map[string]time.Duration
}

// NewReplicaTrustState creates an empty trust state.
func NewReplicaTrustState() *ReplicaTrustState {
	return &ReplicaTrustState{skew: make(map[string]time.Duration)}
}

// Observe records the difference between an operation's advisory wall
// timestamp and the local clock at receipt.
func (r *ReplicaTrustState) Observe(userID string, remote, local time.Time) {
	r.skew[userID] = remote.Sub(local)
}

// Skew returns the last observed skew for a replica, zero if never seen.
func (r *ReplicaTrustState) Skew(userID string) time.Duration {
	return r.skew[userID]
}
