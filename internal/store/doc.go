// Package store keeps a SQLite log of harness runs so results can be
// inspected after the terminal output is gone.
//
// Tables:
//   - runs: one row per harness run, keyed by a UUIDv7 run ID
//   - results: one row per finished invocation, in completion order
//
// Absent variant and option values are stored as NULL. Only the engine's
// coordinator writes, so the connection pool is limited to one connection.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
