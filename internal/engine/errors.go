package engine

import (
	"errors"
	"fmt"

	"goalflow/internal/goal"
)

// ReactionError represents an error detected while reacting to a goal
// event.
//
// Reaction errors include:
//   - Signature rejection: the event failed verification and the goal
//     was marked as failed
//   - Unknown state: an event carried a state outside the goal state
//     space
//   - Missing subject: no push is recorded for the event's commit
//
// ReactionError includes structured fields for diagnostics.
type ReactionError struct {
	// Code identifies the error category.
	Code ReactionErrorCode

	// Message is a human-readable description.
	Message string

	// GoalSetID identifies the affected goal set.
	GoalSetID string

	// Key identifies the affected goal, when one is known.
	Key goal.Key

	// Err is the underlying cause, if any.
	Err error
}

// ReactionErrorCode categorizes reaction errors.
type ReactionErrorCode string

const (
	// ErrCodeSignatureRejected indicates an event failed verification.
	ErrCodeSignatureRejected ReactionErrorCode = "SIGNATURE_REJECTED"

	// ErrCodeUnknownState indicates an event carried an invalid state.
	ErrCodeUnknownState ReactionErrorCode = "UNKNOWN_STATE"

	// ErrCodeMissingSubject indicates no push is recorded for the
	// event's commit.
	ErrCodeMissingSubject ReactionErrorCode = "MISSING_SUBJECT"
)

// Error implements the error interface.
func (e *ReactionError) Error() string {
	if e.Key.UniqueName != "" {
		return fmt.Sprintf("%s: %s (goal_set=%s, goal=%s)", e.Code, e.Message, e.GoalSetID, e.Key)
	}
	return fmt.Sprintf("%s: %s (goal_set=%s)", e.Code, e.Message, e.GoalSetID)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ReactionError) Unwrap() error {
	return e.Err
}

// IsSignatureRejection reports whether err is a signature rejection.
// Uses errors.As to handle wrapped errors.
func IsSignatureRejection(err error) bool {
	var re *ReactionError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSignatureRejected
	}
	return false
}
