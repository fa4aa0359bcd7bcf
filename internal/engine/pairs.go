package engine

import (
	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/canvas"
	"github.com/slate-hq/slate/internal/clock"
	"github.com/slate-hq/slate/internal/op"
)

// transformPair folds the new operation (a) through one concurrent
// operation (b) and returns the adjusted a. Neither input is mutated.
//
// Operations on different elements interact only through the spatial
// nudge. Same-element pairs dispatch on (a.Type, b.Type).
//
// NOTE on tie-breaks: concurrent move/move resolves by user id
// DESCENDING while concurrent update/update field conflicts resolve by
// user id ASCENDING. The asymmetry is preserved deliberately for
// behavioral compatibility; unifying it would silently change which
// replica wins existing histories.
func (e *Engine) transformPair(a, b op.Operation) op.Operation {
	if a.ElementID != b.ElementID {
		return e.nudge(a, b)
	}

	rel := a.VectorClock.Compare(b.VectorClock)

	switch {
	case a.Type == op.TypeCreate && b.Type == op.TypeCreate:
		// Duplicate creates should not occur with unique element ids, but
		// are resolved anyway: the causally (or deterministically) lower
		// side's create is kept. The materializer treats a create of an
		// existing id as a replace, so the winner's payload lands on
		// every replica regardless of which create arrived first.
		if createWins(a, b, rel) {
			return a
		}
		return b.Clone()

	case b.Type == op.TypeDelete && a.Type != op.TypeDelete:
		// Delete wins over anything not provably later than it. An edit
		// that causally saw the delete re-creates the element seeded
		// from the edit's own payload: the target is gone from the
		// materialized state, so only a create makes the edit stick.
		if rel == clock.After {
			return rewriteToCreate(a, a)
		}
		return rewriteToDelete(a)

	case a.Type == op.TypeDelete && b.Type != op.TypeDelete:
		// Symmetric: a delete folded through an edit that causally saw
		// it is undone - the element was re-created after the deletion,
		// so the resolved operation re-asserts the edit's payload.
		// Against anything else the delete stands.
		if b.VectorClock.Compare(a.VectorClock) == clock.After {
			return rewriteToCreate(a, b)
		}
		return a

	case a.Type == op.TypeUpdate && b.Type == op.TypeUpdate:
		return mergeUpdates(a, b, rel)

	case a.Type == op.TypeMove && b.Type == op.TypeMove:
		return resolveMoves(a, b, rel)

	case a.Type == op.TypeStyle && b.Type == op.TypeStyle:
		return mergeStyles(a, b, rel)

	case a.Type == op.TypeMove && b.Type == op.TypeStyle,
		a.Type == op.TypeStyle && b.Type == op.TypeMove:
		return combineMoveStyle(a, b)

	default:
		return resolveMixed(a, b, rel)
	}
}

// createWins resolves create/create: causal order first, then Lamport,
// then user id ascending - the lower side wins.
func createWins(a, b op.Operation, rel clock.Ordering) bool {
	switch rel {
	case clock.Before:
		return true
	case clock.After:
		return false
	}
	if a.Lamport != b.Lamport {
		return a.Lamport < b.Lamport
	}
	return a.UserID < b.UserID
}

// concurrentWins is the shared tie-break for concurrent pairs outside
// the update/style field merge: higher Lamport stamp wins, ties broken
// by user id descending.
func concurrentWins(a, b op.Operation) bool {
	if a.Lamport != b.Lamport {
		return a.Lamport > b.Lamport
	}
	return a.UserID > b.UserID
}

// rewriteToDelete turns a non-delete operation into a delete of its
// target, keeping the operation's identity and clocks.
func rewriteToDelete(a op.Operation) op.Operation {
	out := a.Clone()
	out.Type = op.TypeDelete
	out.ElementType = ""
	out.Data = nil
	out.Style = nil
	out.Position = nil
	out.Bounds = nil
	out.ZIndex = nil
	return out
}

// rewriteToCreate turns operation a into a create seeded from seed's
// payload, keeping a's identity and clocks. Used on both sides of the
// delete-then-edit race: the surviving edit re-creates the element.
// The element type is carried only when the seed knows it; a recreation
// seeded from a move or style has none and the materializer tolerates
// that.
func rewriteToCreate(a, seed op.Operation) op.Operation {
	out := a.Clone()
	out.Type = op.TypeCreate
	out.ElementType = seed.ElementType
	out.Data = seed.Data.Clone()
	out.Style = seed.Style.Clone()
	out.Position = clonePosition(seed.Position)
	out.Bounds = cloneBounds(seed.Bounds)
	out.ZIndex = cloneZIndex(seed.ZIndex)
	return out
}

// mergeUpdates resolves update/update. Causal order decides precedence
// outright: the later side's fields win, merged over the earlier
// side's. Concurrent updates merge key-by-key with conflicting keys
// resolved by lexicographically smaller user id - a fixed arbitrary
// rule, not wall-clock last-writer-wins, because wall clocks are not
// trusted.
func mergeUpdates(a, b op.Operation, rel clock.Ordering) op.Operation {
	out := a.Clone()
	switch rel {
	case clock.After:
		out.Data = canvas.Override(b.Data, a.Data)
		out.Style = canvas.Override(b.Style, a.Style)
	case clock.Before:
		out.Data = canvas.Override(a.Data, b.Data)
		out.Style = canvas.Override(a.Style, b.Style)
		if b.Position != nil {
			out.Position = clonePosition(b.Position)
		}
		if b.Bounds != nil {
			out.Bounds = cloneBounds(b.Bounds)
		}
	default:
		out.Data = mergeConcurrentMaps(a.Data, b.Data, a.UserID, b.UserID)
		out.Style = mergeConcurrentMaps(a.Style, b.Style, a.UserID, b.UserID)
		if a.Position != nil && b.Position != nil && !concurrentWins(a, b) {
			out.Position = clonePosition(b.Position)
			if b.Bounds != nil {
				out.Bounds = cloneBounds(b.Bounds)
			}
		}
	}
	return out
}

// mergeStyles resolves style/style with the same precedence rule as
// update/update, applied to the style map only.
func mergeStyles(a, b op.Operation, rel clock.Ordering) op.Operation {
	out := a.Clone()
	switch rel {
	case clock.After:
		out.Style = canvas.Override(b.Style, a.Style)
	case clock.Before:
		out.Style = canvas.Override(a.Style, b.Style)
	default:
		out.Style = mergeConcurrentMaps(a.Style, b.Style, a.UserID, b.UserID)
	}
	return out
}

// mergeConcurrentMaps unions two payload maps key-by-key. Keys present
// on both sides go to the lexicographically smaller user id.
func mergeConcurrentMaps(am, bm attr.Map, aUser, bUser string) attr.Map {
	if am == nil && bm == nil {
		return nil
	}
	out := make(attr.Map, len(am)+len(bm))
	for k, v := range am.Clone() {
		out[k] = v
	}
	for k, v := range bm.Clone() {
		if _, conflict := out[k]; !conflict {
			out[k] = v
			continue
		}
		if bUser < aUser {
			out[k] = v
		}
		// else: a's value already in place and a's user is smaller.
	}
	return out
}

// resolveMoves resolves move/move on the same element. Causal order
// decides; concurrent moves go to the higher Lamport stamp, ties broken
// by user id descending. The losing side adopts the winner's geometry so
// both replicas materialize the same final position.
func resolveMoves(a, b op.Operation, rel clock.Ordering) op.Operation {
	var aWins bool
	switch rel {
	case clock.After:
		aWins = true
	case clock.Before:
		aWins = false
	default:
		aWins = concurrentWins(a, b)
	}
	if aWins {
		return a
	}
	out := a.Clone()
	out.Position = clonePosition(b.Position)
	if b.Bounds != nil {
		out.Bounds = cloneBounds(b.Bounds)
	}
	return out
}

// combineMoveStyle collapses a move/style pair (either order) into a
// single update carrying the move's geometry and the style's style map,
// with vector clocks merged and the Lamport stamp maxed.
func combineMoveStyle(a, b op.Operation) op.Operation {
	mv, st := a, b
	if a.Type == op.TypeStyle {
		mv, st = b, a
	}

	out := a.Clone()
	out.Type = op.TypeUpdate
	out.Position = clonePosition(mv.Position)
	out.Bounds = cloneBounds(mv.Bounds)
	out.Style = st.Style.Clone()
	out.VectorClock = a.VectorClock.Merge(b.VectorClock)
	if b.Lamport > out.Lamport {
		out.Lamport = b.Lamport
	}
	return out
}

// resolveMixed handles the remaining same-element pairs (reorder against
// anything, update against move, ...). Causal order decides; concurrent
// ties go to the higher Lamport stamp, then user id descending.
//
// The loser cedes only the effect fields BOTH operations carry: a
// reorder losing to an update still lands its zIndex, because the
// update never disputed it. Ceding disjoint effects would make the
// outcome depend on delivery order and break convergence.
func resolveMixed(a, b op.Operation, rel clock.Ordering) op.Operation {
	var aWins bool
	switch rel {
	case clock.After:
		aWins = true
	case clock.Before:
		aWins = false
	default:
		aWins = concurrentWins(a, b)
	}
	if aWins {
		return a
	}

	out := a.Clone()
	if a.Position != nil && b.Position != nil {
		out.Position = clonePosition(b.Position)
	}
	if a.Bounds != nil && b.Bounds != nil {
		out.Bounds = cloneBounds(b.Bounds)
	}
	if a.ZIndex != nil && b.ZIndex != nil {
		out.ZIndex = cloneZIndex(b.ZIndex)
	}
	if a.Data != nil && b.Data != nil {
		out.Data = cedeConflictingKeys(a.Data, b.Data)
	}
	if a.Style != nil && b.Style != nil {
		out.Style = cedeConflictingKeys(a.Style, b.Style)
	}
	return out
}

// cedeConflictingKeys replaces the keys both maps carry with the
// winner's values, keeping the loser's uncontested keys.
func cedeConflictingKeys(loser, winner attr.Map) attr.Map {
	out := loser.Clone()
	for k, v := range winner.Clone() {
		if _, contested := out[k]; contested {
			out[k] = v
		}
	}
	return out
}
