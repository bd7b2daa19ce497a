package goal

import "fmt"

// State is the lifecycle state of a goal. The state space is closed:
// any value outside this set is a data error, not a soft default.
type State string

const (
	Planned               State = "planned"
	Requested             State = "requested"
	WaitingForPreApproval State = "waiting_for_pre_approval"
	PreApproved           State = "pre_approved"
	InProcess             State = "in_process"
	WaitingForApproval    State = "waiting_for_approval"
	Approved              State = "approved"
	Success               State = "success"
	Failure               State = "failure"
	Skipped               State = "skipped"
	Canceled              State = "canceled"
	Stopped               State = "stopped"
)

// AllStates lists every valid state, in aggregate precedence order for
// the non-terminal portion (see AggregateState).
var AllStates = []State{
	Planned, Requested, WaitingForPreApproval, PreApproved, InProcess,
	WaitingForApproval, Approved, Success, Failure, Skipped, Canceled, Stopped,
}

// Valid reports whether s is a member of the closed state space.
func (s State) Valid() bool {
	switch s {
	case Planned, Requested, WaitingForPreApproval, PreApproved, InProcess,
		WaitingForApproval, Approved, Success, Failure, Skipped, Canceled, Stopped:
		return true
	}
	return false
}

// Unsuccessful reports whether s is a terminal state that blocks
// dependents permanently: the goal finished without success and will
// not proceed again on its own.
func (s State) Unsuccessful() bool {
	switch s {
	case Failure, Skipped, Canceled, Stopped:
		return true
	}
	return false
}

// InFlight reports whether s is a state that may still reach success:
// dependents gated on a goal in one of these states should re-evaluate
// later rather than give up.
func (s State) InFlight() bool {
	switch s {
	case Planned, Requested, WaitingForPreApproval, PreApproved, InProcess,
		WaitingForApproval, Approved:
		return true
	}
	return false
}

// Terminal reports whether s ends a goal's lifecycle. Success is
// terminal unless an approval gate redirects it (see Mutator).
func (s State) Terminal() bool {
	return s == Success || s.Unsuccessful()
}

// CascadeTarget returns the state a planned dependent is moved to when
// a goal it depends on reaches s. Only the three cascading trigger
// states have a target; all others return an error.
func (s State) CascadeTarget() (State, error) {
	switch s {
	case Failure, Stopped:
		return Skipped, nil
	case Canceled:
		return Canceled, nil
	}
	return "", fmt.Errorf("state %q does not cascade to dependents", s)
}
