// Package clock implements the logical clocks that order canvas operations.
//
// Two clocks work together:
//
// VectorClock captures causality. Each replica owns one counter in the map
// and advances it by exactly one per issued operation; merging takes the
// per-replica maximum. Comparing two clocks yields Before, After, or
// Concurrent - the classical vector-clock causality test.
//
// Lamport is a scalar logical counter used strictly to break ties between
// causally-concurrent operations. It never substitutes for the vector
// clock's causality answer.
//
// DETERMINISM: all operations in this package are pure, total, and
// side-effect-free. VectorClock values are immutable - Increment and Merge
// return new maps and never touch their inputs. Wall-clock time is never
// consulted.
package clock
