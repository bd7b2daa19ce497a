// Package store provides SQLite-backed durable storage for the
// goalflow event log.
//
// The store implements an append-only log:
//   - Goal events: one row per goal mutation, never updated in place
//   - Goal sets: one row per derived aggregate-state change
//   - Commits: the triggering push metadata per subject commit
//
// Appends are idempotent via ON CONFLICT DO NOTHING. For goal events
// the conflict target (goal_set_id, environment, unique_name, version)
// doubles as the optimistic-concurrency check: two workers racing to
// mutate the same goal from the same base version collide, and the
// loser gets ErrStaleVersion instead of silently clobbering history.
//
// Reads are deterministic: every multi-row query orders by
// ts ASC, version ASC, id ASC so pagination and reduction behave
// identically across workers.
//
// Database configuration:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
