package goal

import (
	"fmt"
	"log/slog"
)

// PreconditionStatus is the three-valued outcome of evaluating a goal's
// dependency gate against its sibling goals.
type PreconditionStatus int

const (
	// PreconditionsMet: every declared dependency permits the goal to
	// proceed now.
	PreconditionsMet PreconditionStatus = iota

	// PreconditionsNotYet: at least one dependency is still in flight.
	// Re-evaluate when a sibling changes state.
	PreconditionsNotYet

	// PreconditionsUnmeetable: at least one dependency ended without
	// success. The gate will never open on its own.
	PreconditionsUnmeetable
)

// String returns a readable label for logs.
func (s PreconditionStatus) String() string {
	switch s {
	case PreconditionsMet:
		return "met"
	case PreconditionsNotYet:
		return "not_yet"
	case PreconditionsUnmeetable:
		return "unmeetable"
	}
	return fmt.Sprintf("PreconditionStatus(%d)", int(s))
}

// EvaluatePreconditions decides whether a goal's declared dependencies
// permit it to proceed, given the reduced sibling goal set.
//
// A goal with no preconditions is trivially met. For each precondition
// key:
//
//   - No sibling with that key: treated as met. This instance simply
//     does not manage that dependency, so it cannot block on it. The
//     anomaly is logged, not failed.
//   - Sibling ended unsuccessfully (failure/skipped/canceled/stopped):
//     unmeetable.
//   - Sibling still in flight: not yet.
//   - Sibling succeeded: met.
//
// Any sibling state outside the closed state space is a data error and
// returns a non-nil error: the caller must not silently advance a goal
// past corrupt dependency data.
//
// Unmeetable dominates NotYet: if one dependency has permanently failed
// the overall answer is unmeetable even while others are still running.
func EvaluatePreconditions(g *Event, siblings []Event) (PreconditionStatus, error) {
	status := PreconditionsMet
	for _, pre := range g.PreConditions {
		dep := FindByKey(siblings, pre)
		if dep == nil {
			slog.Warn("precondition references unmanaged goal, treating as satisfied",
				"goal", g.Key().String(),
				"precondition", pre.String(),
				"goal_set_id", g.GoalSetID,
			)
			continue
		}
		switch {
		case dep.State == Success:
			// met, keep looking
		case dep.State.Unsuccessful():
			status = PreconditionsUnmeetable
		case dep.State.InFlight():
			if status != PreconditionsUnmeetable {
				status = PreconditionsNotYet
			}
		default:
			return 0, fmt.Errorf("precondition %s of goal %s in unknown state %q",
				pre.String(), g.Key().String(), dep.State)
		}
	}
	return status, nil
}

// PreconditionsSatisfied is the boolean convenience form used by the
// reactors: true only when every dependency is verified successful.
func PreconditionsSatisfied(g *Event, siblings []Event) (bool, error) {
	status, err := EvaluatePreconditions(g, siblings)
	if err != nil {
		return false, err
	}
	return status == PreconditionsMet, nil
}
