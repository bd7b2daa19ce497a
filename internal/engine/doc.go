// Package engine reacts to goal events and drives goal sets forward.
//
// The engine consumes one goal event at a time from an in-process queue,
// verifies its signature, loads the goal's reduced siblings, and applies
// the reactions the event warrants: requesting downstream goals after a
// success, skipping or canceling downstream goals after a failure, and
// recomputing the goal-set aggregate. A background sweeper times out
// goals stuck in flight and reconciles stale goal-set records.
//
// All mutations flow through the Mutator, which is the only component
// that appends goal events. It stamps versions, provenance, and
// signatures so that every reaction produces a well-formed record.
package engine
