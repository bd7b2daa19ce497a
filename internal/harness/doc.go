// Package harness executes YAML-defined pipeline scenarios.
//
// A scenario declares a pipeline, a sequence of goal outcome reports,
// and assertions over the resulting goal set. The runner plans the
// pipeline into a fresh event log, feeds each reported outcome through
// the engine, and checks the assertions against the reduced state.
//
// Scenarios serve as executable conformance tests for the reaction
// semantics: advancement, cascades, approval gates, and goal-set
// aggregation.
package harness
