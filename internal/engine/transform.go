package engine

import (
	"math"
	"sort"
	"time"

	"github.com/slate-hq/slate/internal/clock"
	"github.com/slate-hq/slate/internal/op"
	"github.com/slate-hq/slate/internal/spatial"
)

const (
	// DefaultMaxProcessingTime bounds a single transform fold. It protects
	// against pathological concurrent-set sizes, not against I/O (the
	// engine performs none).
	DefaultMaxProcessingTime = 5 * time.Second

	// DefaultNudgeThreshold is the Euclidean center distance below which
	// concurrent moves on different elements are considered overlapping.
	DefaultNudgeThreshold = 50.0

	// DefaultNudgeOffset is the per-axis offset applied to a nudged move.
	DefaultNudgeOffset = 10.0
)

// Engine folds new operations through their concurrent sets. It holds
// configuration and an optional spatial candidate index only - no
// per-document state - so one Engine may serve any number of sessions.
type Engine struct {
	maxProcessingTime time.Duration
	nudgeThreshold    float64
	nudgeOffset       float64
	grid              *spatial.Grid
	now               func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxProcessingTime sets the fold budget.
// Use a small value in tests to exercise the timeout path.
func WithMaxProcessingTime(d time.Duration) Option {
	return func(e *Engine) { e.maxProcessingTime = d }
}

// WithNudgeThreshold sets the center-distance below which concurrent
// moves on different elements are nudged apart.
func WithNudgeThreshold(units float64) Option {
	return func(e *Engine) { e.nudgeThreshold = units }
}

// WithNudgeOffset sets the per-axis nudge offset.
func WithNudgeOffset(units float64) Option {
	return func(e *Engine) { e.nudgeOffset = units }
}

// WithSpatialIndex attaches a grid index used to pre-filter spatial
// conflict candidates. Without one the engine falls back to the exact
// distance check alone, which is correct but checks every pair.
func WithSpatialIndex(g *spatial.Grid) Option {
	return func(e *Engine) { e.grid = g }
}

// WithNow injects the time source for the processing budget.
// Tests use a fake clock to exercise the timeout deterministically.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine with the given options applied over defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxProcessingTime: DefaultMaxProcessingTime,
		nudgeThreshold:    DefaultNudgeThreshold,
		nudgeOffset:       DefaultNudgeOffset,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transform resolves a new operation against the not-yet-folded set.
//
// The pending set is causally filtered and deterministically ordered,
// then the operation is folded left-to-right through it pair by pair.
// The returned operation is ready for materialization; the inputs are
// never mutated.
//
// Errors: MALFORMED_OPERATION if the operation fails the mechanical
// gate, PROCESSING_TIMEOUT if the fold exceeds the configured budget.
func (e *Engine) Transform(newOp op.Operation, pending []op.Operation) (op.Operation, error) {
	if err := newOp.Validate(); err != nil {
		return op.Operation{}, NewMalformedError(newOp.ID, newOp.ElementID, err)
	}

	start := e.now()
	concurrent := e.concurrentSet(newOp, pending)

	result := newOp.Clone()
	for i, other := range concurrent {
		if elapsed := e.now().Sub(start); elapsed >= e.maxProcessingTime {
			return op.Operation{}, NewTimeoutError(newOp.ID, elapsed, e.maxProcessingTime, i)
		}
		result = e.transformPair(result, other)
	}
	return result, nil
}

// concurrentSet keeps the operations the new one must fold through and
// orders them deterministically.
//
// Kept: any pending operation that is causally before the new one or
// concurrent with it. Dropped: anything causally after the new operation
// (its clock dominates the new op's, so folding would invert causality).
//
// Order: causally-before operations first, then within the concurrent
// remainder ascending Lamport stamp, ties broken by ascending
// lexicographic user id. Identical on every replica given the same
// multiset - the precondition for convergence.
func (e *Engine) concurrentSet(newOp op.Operation, pending []op.Operation) []op.Operation {
	kept := make([]op.Operation, 0, len(pending))
	for _, o := range pending {
		if o.ID == newOp.ID {
			// Best-effort idempotent replay: never fold an op through itself.
			continue
		}
		switch o.VectorClock.Compare(newOp.VectorClock) {
		case clock.Before, clock.Concurrent:
			kept = append(kept, o)
		}
	}

	rank := func(o op.Operation) int {
		if o.VectorClock.Compare(newOp.VectorClock) == clock.Before {
			return 0
		}
		return 1
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		if a.Lamport != b.Lamport {
			return a.Lamport < b.Lamport
		}
		return a.UserID < b.UserID
	})
	return kept
}

// nudge applies the spatial conflict heuristic for a pair of moves on
// different elements: when the optional grid marks the other element as
// a candidate (or no grid is attached) and the exact center distance is
// under the threshold, the new operation's position is offset so the two
// moves do not land pixel-exact on each other.
//
// The nudge never changes which operation wins anything - only where an
// accepted move lands.
func (e *Engine) nudge(a, b op.Operation) op.Operation {
	if a.Type != op.TypeMove || b.Type != op.TypeMove || a.Position == nil || b.Position == nil {
		return a
	}

	if e.grid != nil && !e.grid.QueryNear(queryBounds(a)).Contains(b.ElementID) {
		return a
	}

	ca, cb := center(a), center(b)
	dx, dy := ca.X-cb.X, ca.Y-cb.Y
	if math.Sqrt(dx*dx+dy*dy) >= e.nudgeThreshold {
		return a
	}

	out := a.Clone()
	out.Position.X += e.nudgeOffset
	out.Position.Y += e.nudgeOffset
	if out.Bounds != nil {
		out.Bounds.X += e.nudgeOffset
		out.Bounds.Y += e.nudgeOffset
	}
	return out
}

// center is the element's bounding-box center when bounds are carried,
// the bare position otherwise.
func center(o op.Operation) op.Position {
	if o.Bounds != nil {
		return o.Bounds.Center()
	}
	return *o.Position
}

// queryBounds is the region handed to the grid candidate query: the
// operation's bounds if present, otherwise a threshold-sized box around
// its position.
func queryBounds(o op.Operation) op.Bounds {
	if o.Bounds != nil {
		return *o.Bounds
	}
	return op.Bounds{
		X:      o.Position.X - DefaultNudgeThreshold,
		Y:      o.Position.Y - DefaultNudgeThreshold,
		Width:  2 * DefaultNudgeThreshold,
		Height: 2 * DefaultNudgeThreshold,
	}
}
