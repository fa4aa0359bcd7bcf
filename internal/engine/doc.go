// Package engine implements the causal operational transform core.
//
// Given a new operation and the set of operations some replicas have
// already materialized but the new operation has not folded into its
// causal past, the engine produces a single operation that is safe to
// materialize next.
//
// ARCHITECTURE:
//
// Transform pipeline:
//  1. Causal filtering and ordering - discard operations the new one is
//     provably ahead of, then order the rest deterministically:
//     causally-before first, then Lamport stamp, then user id.
//  2. Pairwise fold - the operation is folded left-to-right through the
//     ordered set via the (type, type) dispatch table in pairs.go.
//  3. Spatial nudge - concurrent moves on different but near elements
//     get a small positional offset so accepted moves do not land
//     pixel-exact on each other. A heuristic, never a winner change.
//
// Every replica that observes the same multiset of operations runs the
// same deterministic chain (causal order, then Lamport, then user id) and
// therefore computes the same transformed operation and the same final
// canvas. That is the engine's central correctness property.
//
// CRITICAL PATTERNS:
//
// Purity: Transform never mutates its inputs and performs no I/O. All
// shared mutable state lives with the caller (TransformContext is owned
// by the session; the spatial index tolerates one writer). Wall-clock
// timestamps on operations are advisory and never consulted for ordering.
//
// The only failure modes are a malformed operation (rejected before the
// fold) and an exceeded processing budget (protection against
// pathological concurrent-set sizes). Every other branch - unknown
// element, empty style map, concurrent tie - resolves deterministically
// rather than erroring.
package engine
