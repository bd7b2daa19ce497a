package engine

import (
	"context"
	"fmt"

	"goalflow/internal/goal"
	"goalflow/internal/signing"
	"goalflow/internal/store"
)

// Registration identifies this runtime in provenance entries.
type Registration struct {
	Name    string
	Version string
}

// Update describes one requested mutation to a goal. Zero-valued fields
// leave the corresponding goal fields untouched (the mutation carries
// the previous record forward); Error is the exception and always
// reflects the new record.
type Update struct {
	State       goal.State
	Description string

	// Phase overrides the execution phase label when non-nil. A nil
	// Phase carries the previous phase forward; an empty *Phase clears
	// it.
	Phase *string

	URL          string
	ExternalURLs []goal.ExternalURL
	Data         string
	Error        string

	// Fulfillment replaces the goal's fulfillment when non-nil. Used by
	// the container redirector to hand execution elsewhere.
	Fulfillment *goal.Fulfillment

	// Approved records an approval granted by this mutation. When nil,
	// any prior approval is carried forward unchanged.
	Approved *goal.Approval

	// PreApproved records a pre-approval granted by this mutation.
	PreApproved *goal.Approval

	// Actor attribution for the provenance entry.
	UserID    string
	ChannelID string

	// CorrelationID ties this mutation to the triggering interaction.
	// Generated when empty.
	CorrelationID string
}

// Mutator is the single component that appends goal events. Every
// reaction funnels through Update so versions, provenance, and
// signatures are stamped uniformly.
type Mutator struct {
	store        *store.Store
	signer       *signing.Signer
	clock        Clock
	ids          IDGenerator
	registration Registration
}

// NewMutator creates a mutator. signer may be nil to disable signing.
func NewMutator(st *store.Store, signer *signing.Signer, clock Clock, ids IDGenerator, reg Registration) *Mutator {
	return &Mutator{
		store:        st,
		signer:       signer,
		clock:        clock,
		ids:          ids,
		registration: reg,
	}
}

// Update derives the next event for prev's goal, applying up, and
// appends it to the log. The returned event is the appended record.
//
// The version increases by exactly 1; a concurrent writer that got
// there first surfaces as store.ErrStaleVersion.
//
// A success reported for a goal that still requires approval is
// redirected to waiting_for_approval; granting the approval in the same
// mutation lets the success stand.
func (m *Mutator) Update(ctx context.Context, prev goal.Event, up Update) (goal.Event, error) {
	if !up.State.Valid() {
		return goal.Event{}, &ReactionError{
			Code:      ErrCodeUnknownState,
			Message:   fmt.Sprintf("cannot transition to state %q", up.State),
			GoalSetID: prev.GoalSetID,
			Key:       prev.Key(),
		}
	}

	now := m.clock.Now()

	next := prev
	next.Version = prev.Version + 1
	next.Ts = now
	next.Push = nil
	next.Signature = ""

	next.State = up.State
	if up.State == goal.Success && prev.ApprovalRequired && up.Approved == nil && prev.Approval == nil {
		next.State = goal.WaitingForApproval
	}

	if up.Description != "" {
		next.Description = up.Description
	}
	if up.Phase != nil {
		next.Phase = *up.Phase
	}
	if up.URL != "" {
		next.URL = up.URL
	}
	if up.ExternalURLs != nil {
		next.ExternalURLs = up.ExternalURLs
	}
	if up.Data != "" {
		next.Data = up.Data
	}
	if up.Fulfillment != nil {
		next.Fulfillment = *up.Fulfillment
	}
	next.Error = up.Error

	if up.Approved != nil {
		next.Approval = up.Approved
	}
	if up.PreApproved != nil {
		next.PreApproval = up.PreApproved
	}

	correlationID := up.CorrelationID
	if correlationID == "" {
		correlationID = m.ids.Generate()
	}
	entry := goal.Provenance{
		Name:          m.registration.Name,
		Registration:  m.registration.Name,
		Version:       m.registration.Version,
		CorrelationID: correlationID,
		Ts:            now,
		UserID:        up.UserID,
		ChannelID:     up.ChannelID,
	}
	next.Provenance = append([]goal.Provenance{entry}, prev.Provenance...)

	if m.signer != nil {
		if err := m.signer.Sign(&next); err != nil {
			return goal.Event{}, fmt.Errorf("sign goal %s: %w", next.Key(), err)
		}
	}

	if err := m.store.AppendEvent(ctx, next); err != nil {
		return goal.Event{}, fmt.Errorf("append goal %s v%d: %w", next.Key(), next.Version, err)
	}
	return next, nil
}
