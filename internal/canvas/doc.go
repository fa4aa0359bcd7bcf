// Package canvas owns the materialized document state and the pure
// function that applies one already-resolved operation to it.
//
// The materializer is deliberately forgiving: any branch that targets a
// missing element id is a silent no-op, never an error, because causal
// delete-then-reference races are legitimate and resolved upstream by the
// transform engine. Deleted elements leave no tombstone in the state;
// causal tombstone semantics live only in the operation stream.
//
// DETERMINISM: Apply is pure - it never mutates its inputs and never
// reads ambient state. Two replicas applying the same resolved operation
// sequence to equal states produce equal states, which State.Digest
// makes checkable.
package canvas
