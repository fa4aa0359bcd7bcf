package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/slate-hq/slate/internal/op"
)

// ReadOperations returns every operation in a canvas log.
// Ordering is deterministic: seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) for an unknown canvas.
func (s *Store) ReadOperations(ctx context.Context, canvasID string) ([]op.Operation, error) {
	return s.ReadOperationsSince(ctx, canvasID, 0)
}

// ReadOperationsSince returns operations with seq strictly greater than
// afterSeq, in deterministic order. Used to resume from a snapshot.
func (s *Store) ReadOperationsSince(ctx context.Context, canvasID string, afterSeq int64) ([]op.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM operations
		WHERE canvas_id = ? AND seq > ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, canvasID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []op.Operation{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		o, err := unmarshalOperation(payload)
		if err != nil {
			return nil, err
		}
		ops = append(ops, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

// ReadOperation retrieves a single operation by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadOperation(ctx context.Context, id string) (op.Operation, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM operations WHERE id = ?`, id,
	).Scan(&payload)
	if err != nil {
		return op.Operation{}, fmt.Errorf("read operation %s: %w", id, err)
	}
	return unmarshalOperation(payload)
}

// OperationCount returns the number of logged operations for a canvas.
func (s *Store) OperationCount(ctx context.Context, canvasID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operations WHERE canvas_id = ?`, canvasID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}

// LatestSnapshot returns the highest-seq snapshot for a canvas.
// ok is false when the canvas has no snapshot.
func (s *Store) LatestSnapshot(ctx context.Context, canvasID string) (Snapshot, bool, error) {
	var (
		snap      Snapshot
		clockText string
		stateText string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT canvas_id, seq, version, vector_clock, digest, state
		FROM snapshots
		WHERE canvas_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, canvasID).Scan(
		&snap.CanvasID, &snap.Seq, &snap.Version, &clockText, &snap.Digest, &stateText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	if snap.VectorClock, err = unmarshalClock(clockText); err != nil {
		return Snapshot{}, false, err
	}
	if snap.State, err = unmarshalState(stateText); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Canvases returns the distinct canvas ids present in the log, sorted.
func (s *Store) Canvases(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT canvas_id FROM operations ORDER BY canvas_id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query canvases: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan canvas id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canvases: %w", err)
	}
	return ids, nil
}
