// Package store provides SQLite-backed durable storage for editing session
// traces.
//
// The store is an append-only log with:
//   - Sessions: one row per recorded two-party session
//   - Events: every replica transition observed during the session
//
// # Ordering
//
// Events are ordered by seq, a logical clock assigned by the Recorder, never
// by wall time. Reads use ORDER BY seq ASC so a session reads back in the
// order it was recorded.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Message ids are content hashes computed by ir.MessageID.
package store
