package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slate-hq/slate/internal/canvas"
	"github.com/slate-hq/slate/internal/engine"
	"github.com/slate-hq/slate/internal/op"
	"github.com/slate-hq/slate/internal/spatial"
	"github.com/slate-hq/slate/internal/store"
)

// LocalDraft carries a caller-supplied payload for a locally issued
// operation. Done, when non-nil, receives the stamped operation after
// the loop accepts it; sends are non-blocking, so the channel should be
// buffered.
type LocalDraft struct {
	Draft engine.Draft
	Done  chan op.Operation
}

// Session is the single-writer loop owning one replica's view of one
// canvas: the materialized state, the transform context, and the
// pending buffer of locally issued but unacknowledged operations.
//
// All mutations happen in the Run loop goroutine. External callers use
// SubmitRemote, SubmitLocal, and Acknowledge to enqueue work from any
// goroutine; State and Context return copies for concurrent readers.
//
// On event processing failure the error is logged with full event
// context and processing continues. Retrying a failed transform would
// make the applied-op sequence depend on timing, so the loop logs and
// moves on; the logged operation id is enough to investigate.
type Session struct {
	canvasID string
	userID   string

	eng   *engine.Engine
	queue *eventQueue
	gen   op.IDGenerator
	now   func() time.Time
	log   *store.Store        // optional durable operation log
	grid  *spatial.Grid       // optional, shared with the engine
	trust *engine.ReplicaTrustState

	mu    sync.RWMutex
	state canvas.State
	tctx  engine.TransformContext
}

// Option configures a Session.
type Option func(*Session)

// WithStore attaches a durable log; every accepted operation is
// appended post-transform.
func WithStore(st *store.Store) Option {
	return func(s *Session) { s.log = st }
}

// WithSpatialIndex attaches a grid the session keeps current as
// elements are created, moved, and deleted. Pass the same grid to the
// engine via engine.WithSpatialIndex to gate nudge candidate lookups.
func WithSpatialIndex(g *spatial.Grid) Option {
	return func(s *Session) { s.grid = g }
}

// WithIDGenerator overrides the operation id source. Tests use a
// deterministic generator.
func WithIDGenerator(gen op.IDGenerator) Option {
	return func(s *Session) { s.gen = gen }
}

// WithNow overrides the wall-clock source used for operation timestamps
// and skew observations.
func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithInitialState seeds the session from a snapshot instead of an
// empty canvas: the state, the canvas version, and the merged vector
// clock resume where the snapshot left off.
func WithInitialState(snap store.Snapshot) Option {
	return func(s *Session) {
		s.state = snap.State.Clone()
		s.tctx.CanvasVersion = snap.Version
		s.tctx.CurrentVectorClock = s.tctx.CurrentVectorClock.Merge(snap.VectorClock)
	}
}

// New creates a session for one user on one canvas.
func New(canvasID, userID string, eng *engine.Engine, opts ...Option) *Session {
	s := &Session{
		canvasID: canvasID,
		userID:   userID,
		eng:      eng,
		queue:    newEventQueue(),
		gen:      op.UUIDv7Generator{},
		now:      time.Now,
		trust:    engine.NewReplicaTrustState(),
		state:    canvas.NewState(),
		tctx:     engine.NewContext(userID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitRemote enqueues an operation received from another replica.
// Thread-safe. Returns false if the session has been stopped.
func (s *Session) SubmitRemote(o op.Operation) bool {
	return s.queue.Enqueue(Event{Type: EventTypeRemote, Remote: &o})
}

// SubmitLocal enqueues a draft issued by this session's user.
// Thread-safe. Returns false if the session has been stopped.
func (s *Session) SubmitLocal(d LocalDraft) bool {
	return s.queue.Enqueue(Event{Type: EventTypeLocal, Local: &d})
}

// Acknowledge enqueues an acknowledgement for a locally issued
// operation, removing it from the pending buffer when processed.
func (s *Session) Acknowledge(operationID string) bool {
	return s.queue.Enqueue(Event{Type: EventTypeAck, AckID: operationID})
}

// State returns a deep copy of the materialized canvas.
func (s *Session) State() canvas.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Context returns a copy of the transform context. The pending buffer
// shares no backing storage with the loop's own.
func (s *Session) Context() engine.TransformContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.tctx
	out.CurrentVectorClock = s.tctx.CurrentVectorClock.Clone()
	out.PendingOperations = make([]op.Operation, len(s.tctx.PendingOperations))
	for i, p := range s.tctx.PendingOperations {
		out.PendingOperations[i] = p.Clone()
	}
	out.ElementStates = make(map[string]engine.ElementState, len(s.tctx.ElementStates))
	for k, v := range s.tctx.ElementStates {
		out.ElementStates[k] = v
	}
	return out
}

// Skew returns the last observed wall-clock skew for a replica.
func (s *Session) Skew(userID string) time.Duration {
	return s.trust.Skew(userID)
}

// Run starts the single-writer loop. Blocks until the context is
// cancelled or Stop is called. Must be called from exactly one
// goroutine.
func (s *Session) Run(ctx context.Context) error {
	slog.Info("session starting", "canvas", s.canvasID, "user", s.userID)

	for {
		event, ok := s.queue.TryDequeue()
		if ok {
			if err := s.processEvent(ctx, event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("session stopping: context cancelled", "canvas", s.canvasID)
			s.queue.Close()
			return ctx.Err()

		case <-s.queue.Wait():
			// The signal channel closes when the queue closes, which
			// fires this case immediately with an empty queue.
			if s.queue.Len() == 0 {
				slog.Info("session stopping: queue closed", "canvas", s.canvasID)
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the session. Closes the event queue, which
// causes Run to return once the backlog drains.
func (s *Session) Stop() {
	s.queue.Close()
}

func (s *Session) processEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypeRemote:
		if event.Remote == nil {
			return fmt.Errorf("remote event missing operation")
		}
		return s.processRemote(ctx, *event.Remote)

	case EventTypeLocal:
		if event.Local == nil {
			return fmt.Errorf("local event missing draft")
		}
		return s.processLocal(ctx, *event.Local)

	case EventTypeAck:
		s.mu.Lock()
		s.tctx.Acknowledge(event.AckID)
		s.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

// processRemote folds one remote operation: transform against the
// pending buffer, materialize, advance the context, then index and log.
func (s *Session) processRemote(ctx context.Context, o op.Operation) error {
	s.trust.Observe(o.UserID, o.Timestamp, s.now())

	s.mu.Lock()
	resolved, err := s.eng.Transform(o, s.tctx.PendingOperations)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("transform %s: %w", o.ID, err)
	}
	s.state = canvas.Apply(s.state, resolved)
	s.tctx.Update(resolved)
	s.mu.Unlock()

	s.indexElement(resolved)
	if err := s.appendToLog(ctx, resolved); err != nil {
		return err
	}

	slog.Debug("remote operation applied",
		"canvas", s.canvasID,
		"op", resolved.ID,
		"type", resolved.Type,
		"element", resolved.ElementID,
		"from", o.UserID,
	)
	return nil
}

// processLocal stamps a draft with the context's clocks and applies it.
// Local operations are issued against the current state, so no
// transform is needed; they join the pending buffer until acknowledged.
func (s *Session) processLocal(ctx context.Context, d LocalDraft) error {
	s.mu.Lock()
	o := s.tctx.CreateOperation(d.Draft, s.userID, s.gen, s.now())
	if err := o.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("draft %s for %s: %w", d.Draft.Type, d.Draft.ElementID, err)
	}
	s.state = canvas.Apply(s.state, o)
	s.tctx.Update(o)
	s.tctx.PendingOperations = append(s.tctx.PendingOperations, o.Clone())
	s.mu.Unlock()

	s.indexElement(o)
	if err := s.appendToLog(ctx, o); err != nil {
		return err
	}

	slog.Debug("local operation issued",
		"canvas", s.canvasID,
		"op", o.ID,
		"type", o.Type,
		"element", o.ElementID,
	)

	if d.Done != nil {
		select {
		case d.Done <- o:
		default:
		}
	}
	return nil
}

// indexElement keeps the spatial grid current with the element's latest
// geometry.
func (s *Session) indexElement(o op.Operation) {
	if s.grid == nil {
		return
	}

	switch o.Type {
	case op.TypeDelete:
		s.grid.Remove(o.ElementID)
	case op.TypeCreate, op.TypeUpdate, op.TypeMove:
		if o.Bounds != nil {
			s.grid.Insert(o.ElementID, *o.Bounds)
		} else if o.Position != nil {
			s.grid.Insert(o.ElementID, op.Bounds{X: o.Position.X, Y: o.Position.Y})
		}
	}
}

func (s *Session) appendToLog(ctx context.Context, o op.Operation) error {
	if s.log == nil {
		return nil
	}
	if _, _, err := s.log.AppendOperation(ctx, s.canvasID, o); err != nil {
		return fmt.Errorf("append %s: %w", o.ID, err)
	}
	return nil
}

// Checkpoint writes the current state as a snapshot when a log is
// attached. Thread-safe; intended to be driven by the owner between
// events, not from inside the loop.
func (s *Session) Checkpoint(ctx context.Context) error {
	if s.log == nil {
		return nil
	}

	s.mu.RLock()
	snap := store.Snapshot{
		CanvasID:    s.canvasID,
		Version:     s.tctx.CanvasVersion,
		VectorClock: s.tctx.CurrentVectorClock.Clone(),
		State:       s.state.Clone(),
	}
	s.mu.RUnlock()

	n, err := s.log.OperationCount(ctx, s.canvasID)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", s.canvasID, err)
	}
	snap.Seq = n

	if err := s.log.WriteSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("checkpoint %s: %w", s.canvasID, err)
	}
	return nil
}

func logEventError(event Event, err error) {
	switch event.Type {
	case EventTypeRemote:
		id := ""
		if event.Remote != nil {
			id = event.Remote.ID
		}
		slog.Error("remote operation failed", "op", id, "error", err)
	case EventTypeLocal:
		slog.Error("local draft failed", "error", err)
	default:
		slog.Error("event processing failed", "event_type", int(event.Type), "error", err)
	}
}
