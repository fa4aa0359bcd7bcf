// Package session runs the single-writer loop that owns one replica's
// view of a canvas.
//
// The transform engine (internal/engine) is pure; this package supplies
// everything stateful around it: the FIFO event queue, the materialized
// canvas state, the transform context with its pending buffer, the
// spatial index maintenance, and the optional durable operation log.
//
// Concurrency model:
//   - Run must be called from exactly one goroutine; every mutation of
//     session state happens there.
//   - SubmitRemote, SubmitLocal, and Acknowledge are safe from any
//     goroutine and only enqueue.
//   - State and Context return deep copies and are safe concurrent
//     reads.
//
// Determinism: events are processed strictly in arrival order, and a
// failed event is logged and skipped rather than retried, so replaying
// the same event sequence always yields the same applied-op log.
package session
