// Package store provides SQLite-backed durable storage for evaluation
// history.
//
// The store keeps:
//   - Expressions: named expressions keyed by root node hash
//   - Runs: one row per batch evaluation, keyed by UUIDv7
//   - Results: the (derivative, value) pairs of each run
//
// # Determinism
//
// Runs are ordered by seq (the evaluator's logical clock), never by wall
// time. List queries use ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Values are stored as canonical JSON of shortest round-trip decimal
// strings, so a stored run reproduces the evaluator's floats exactly.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
