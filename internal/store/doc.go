// Package store provides SQLite-backed durable storage for canvas
// operation logs.
//
// The store is an append-only log of RESOLVED operations: the session
// layer transforms an incoming operation against its pending set first
// and appends the result, so replay is pure materialization with no
// transform decisions left to re-make.
//
// Invariants:
//   - All ordering uses seq INTEGER (per-canvas receipt order), never
//     wall-clock timestamps.
//   - Every read query orders by seq ASC, id ASC COLLATE BINARY so
//     replays over the same log are byte-identical.
//   - Appends are idempotent via ON CONFLICT(id) DO NOTHING; replaying
//     a session transcript into an existing database is safe.
//
// Database configuration:
//   - WAL mode for concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Snapshots carry the canvas state digest (internal/attr, SHA-256 with
// domain separation) so a rebuilt log can be verified against the state
// the writer saw.
package store
