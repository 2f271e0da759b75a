// Package storage persists push subscriptions.
//
// A subscription is keyed by its push endpoint and carries the two Web Push
// credential strings plus the last date the user answered a check-in.
//
// Drivers:
//   - "sqlite": SQLite database file (pure Go driver, default)
//   - "file": dependency-free JSON snapshot + journal
//   - "postgres": PostgreSQL via pgx connection pool
//
// Every Store operation is atomic from the caller's perspective, and Remove is
// idempotent so concurrent prune paths never fail on an already-deleted row.
package storage
