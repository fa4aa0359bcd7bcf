package store

import (
	"context"
	"fmt"

	"github.com/slate-hq/slate/internal/canvas"
)

// ReplayResult is the outcome of rebuilding a canvas from its log.
type ReplayResult struct {
	CanvasID string
	State    canvas.State
	Digest   string

	// OpsApplied counts operations folded during this replay, excluding
	// anything covered by the starting snapshot.
	OpsApplied int64

	// FromSnapshot is the snapshot seq the replay resumed from, zero
	// when the replay started from an empty canvas.
	FromSnapshot int64
}

// Replay rebuilds a canvas by materializing its resolved operation log
// in seq order, resuming from the latest snapshot when one exists.
//
// The log stores post-transform operations, so no transform decisions
// are re-made here: replay is deterministic materialization.
func (s *Store) Replay(ctx context.Context, canvasID string) (ReplayResult, error) {
	res := ReplayResult{CanvasID: canvasID}

	state := canvas.NewState()
	var afterSeq int64

	snap, ok, err := s.LatestSnapshot(ctx, canvasID)
	if err != nil {
		return res, fmt.Errorf("replay %s: %w", canvasID, err)
	}
	if ok {
		state = snap.State
		afterSeq = snap.Seq
		res.FromSnapshot = snap.Seq
	}

	ops, err := s.ReadOperationsSince(ctx, canvasID, afterSeq)
	if err != nil {
		return res, fmt.Errorf("replay %s: %w", canvasID, err)
	}

	for _, o := range ops {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("replay %s: %w", canvasID, err)
		}
		state = canvas.Apply(state, o)
		res.OpsApplied++
	}

	res.State = state
	if res.Digest, err = state.Digest(); err != nil {
		return res, fmt.Errorf("replay %s: %w", canvasID, err)
	}
	return res, nil
}

// Verify replays a canvas from an empty state and compares the result
// against the latest snapshot's digest. A mismatch means the log and the
// snapshot disagree (corruption, or a snapshot written from a diverged
// session) and the snapshot should not be trusted.
func (s *Store) Verify(ctx context.Context, canvasID string) error {
	snap, ok, err := s.LatestSnapshot(ctx, canvasID)
	if err != nil {
		return fmt.Errorf("verify %s: %w", canvasID, err)
	}
	if !ok {
		return nil
	}

	state := canvas.NewState()
	ops, err := s.ReadOperations(ctx, canvasID)
	if err != nil {
		return fmt.Errorf("verify %s: %w", canvasID, err)
	}

	var seq int64
	for _, o := range ops {
		seq++
		state = canvas.Apply(state, o)
		if seq == snap.Seq {
			break
		}
	}

	digest, err := state.Digest()
	if err != nil {
		return fmt.Errorf("verify %s: %w", canvasID, err)
	}
	if digest != snap.Digest {
		return fmt.Errorf("verify %s: digest mismatch at seq %d: log %s, snapshot %s",
			canvasID, snap.Seq, digest, snap.Digest)
	}
	return nil
}
