package store

import (
	"context"
	"fmt"

	"github.com/slate-hq/slate/internal/canvas"
	"github.com/slate-hq/slate/internal/clock"
	"github.com/slate-hq/slate/internal/op"
)

// AppendOperation appends a resolved operation to a canvas log and
// returns its assigned seq.
//
// Appends are idempotent via ON CONFLICT(id) DO NOTHING: re-appending an
// operation already in the log returns its existing seq with
// inserted=false and writes nothing.
func (s *Store) AppendOperation(ctx context.Context, canvasID string, o op.Operation) (seq int64, inserted bool, err error) {
	payload, err := marshalOperation(o)
	if err != nil {
		return 0, false, fmt.Errorf("append operation: %w", err)
	}
	clockJSON, err := marshalClock(o.VectorClock)
	if err != nil {
		return 0, false, fmt.Errorf("append operation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("append operation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed.

	// Claim the next seq inside the transaction; the single-connection
	// pool makes this race-free.
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM operations WHERE canvas_id = ?`,
		canvasID,
	).Scan(&seq); err != nil {
		return 0, false, fmt.Errorf("append operation: next seq: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO operations
		(id, canvas_id, seq, type, element_id, user_id, lamport, vector_clock, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		o.ID,
		canvasID,
		seq,
		string(o.Type),
		o.ElementID,
		o.UserID,
		o.Lamport,
		clockJSON,
		payload,
	)
	if err != nil {
		return 0, false, fmt.Errorf("append operation: insert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("append operation: rows affected: %w", err)
	}

	if rows == 0 {
		// Already in the log: surface the existing seq.
		if err := tx.QueryRowContext(ctx,
			`SELECT seq FROM operations WHERE id = ?`, o.ID,
		).Scan(&seq); err != nil {
			return 0, false, fmt.Errorf("append operation: select existing: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("append operation: commit (existing): %w", err)
		}
		return seq, false, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("append operation: commit: %w", err)
	}
	return seq, true, nil
}

// Snapshot is a materialized canvas state checkpoint keyed by the seq of
// the last operation folded into it. VectorClock is the session's merged
// clock at snapshot time, so a restored session resumes causal tracking
// without rereading the whole log.
type Snapshot struct {
	CanvasID    string
	Seq         int64
	Version     int64
	VectorClock clock.VectorClock
	Digest      string
	State       canvas.State
}

// WriteSnapshot stores a state checkpoint. Writing the same
// (canvas, seq) twice is a silent no-op.
func (s *Store) WriteSnapshot(ctx context.Context, snap Snapshot) error {
	digest, err := snap.State.Digest()
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if snap.Digest != "" && snap.Digest != digest {
		return fmt.Errorf("write snapshot: digest mismatch: given %s, computed %s", snap.Digest, digest)
	}

	stateJSON, err := marshalState(snap.State)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	clockJSON, err := marshalClock(snap.VectorClock)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots
		(canvas_id, seq, version, vector_clock, digest, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(canvas_id, seq) DO NOTHING
	`,
		snap.CanvasID,
		snap.Seq,
		snap.Version,
		clockJSON,
		digest,
		stateJSON,
	)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
