package goal

import "fmt"

// aggregatePrecedence is the strict precedence order for the derived
// goal-set state. The first state present among the member goals wins;
// success applies only when every member goal succeeded.
var aggregatePrecedence = []State{
	Failure,
	Canceled,
	Stopped,
	InProcess,
	WaitingForPreApproval,
	WaitingForApproval,
	PreApproved,
	Approved,
	Requested,
	Planned,
	Skipped,
}

// AggregateState computes the overall state of a goal set from the
// reduced states of its member goals.
//
// An empty goal set has no meaningful aggregate and returns an error.
// A member state outside the closed state space also returns an error:
// the precedence table is exhaustive over valid states, so anything
// unmatched is corrupt data, not a soft default.
func AggregateState(goals []Event) (State, error) {
	if len(goals) == 0 {
		return "", fmt.Errorf("cannot aggregate empty goal set")
	}

	present := make(map[State]bool, len(goals))
	for _, g := range goals {
		if !g.State.Valid() {
			return "", fmt.Errorf("goal %s in unknown state %q", g.Key().String(), g.State)
		}
		present[g.State] = true
	}

	for _, s := range aggregatePrecedence {
		if present[s] {
			return s, nil
		}
	}

	// Nothing from the precedence table: the only remaining valid state
	// is success, so every goal must have succeeded.
	return Success, nil
}
