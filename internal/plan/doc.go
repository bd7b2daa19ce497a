// Package plan compiles CUE pipeline definitions into goal sets.
//
// A pipeline definition names the goals of a delivery pipeline, their
// dependency edges, and their fulfillment. Compile parses the CUE value
// into a Spec, Validate checks it (including cycle analysis on the
// dependency graph), and Materialize turns it into the version-1
// planned goal events and the initial goal-set record.
package plan
