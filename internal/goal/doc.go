// Package goal defines the data model and pure decision logic for the
// goalflow orchestration engine.
//
// This package contains type definitions and side-effect-free functions
// only. All other internal packages import goal; goal imports nothing
// internal. This keeps the model the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - A goal's identity is (environment, unique_name); the display name
//     is never part of identity.
//   - Goal events are append-only. The authoritative record for a goal is
//     always recomputed by Reduce, never stored as the sole truth.
//   - Version is a per-goal monotonic counter; every mutation is version+1
//     of the previous authoritative record.
//   - Timestamps are milliseconds since epoch, stamped by an injected
//     clock so tests are deterministic.
package goal
