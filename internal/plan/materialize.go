package plan

import (
	"context"
	"fmt"

	"goalflow/internal/goal"
	"goalflow/internal/store"
)

// MaterializeParams carries the identity of the planning run.
type MaterializeParams struct {
	// GoalSetID identifies the planned goal set. Typically a UUIDv7.
	GoalSetID string

	// Ts stamps every planned record, in epoch milliseconds.
	Ts int64

	// Registration and Version identify this runtime in provenance.
	Registration string
	Version      string

	// CorrelationID ties the planned records to the triggering push.
	CorrelationID string
}

// Materialize turns a validated spec into the version-1 planned goal
// events and the initial goal-set record for subject. Goals keep their
// declaration order.
func Materialize(s *Spec, subject goal.CommitRef, p MaterializeParams) ([]goal.Event, goal.Set, error) {
	if errs := Validate(s); len(errs) > 0 {
		return nil, goal.Set{}, fmt.Errorf("invalid pipeline %q: %w", s.Name, errs[0])
	}

	provenance := []goal.Provenance{{
		Name:          p.Registration,
		Registration:  p.Registration,
		Version:       p.Version,
		CorrelationID: p.CorrelationID,
		Ts:            p.Ts,
	}}

	var events []goal.Event
	var members []goal.SetMember
	for _, g := range s.Goals {
		key := g.key(s.Environment)

		var pres []goal.Key
		for _, dep := range g.Requires {
			pres = append(pres, resolveDependency(dep, g, s.Environment))
		}

		description := g.Description
		if description == "" {
			description = fmt.Sprintf("Planned: %s", key.Name)
		}

		events = append(events, goal.Event{
			Environment:         key.Environment,
			UniqueName:          key.UniqueName,
			Name:                key.Name,
			GoalSet:             s.Name,
			GoalSetID:           p.GoalSetID,
			SHA:                 subject.SHA,
			Branch:              subject.Branch,
			Repo:                subject.Repo,
			State:               goal.Planned,
			Description:         description,
			Version:             1,
			Ts:                  p.Ts,
			PreConditions:       pres,
			Fulfillment:         g.Fulfillment,
			Provenance:          provenance,
			RetryFeasible:       g.RetryFeasible,
			ApprovalRequired:    g.ApprovalRequired,
			PreApprovalRequired: g.PreApprovalRequired,
			Data:                g.Data,
		})
		members = append(members, goal.SetMember{Name: key.Name, UniqueName: key.UniqueName})
	}

	set := goal.Set{
		GoalSetID:  p.GoalSetID,
		GoalSet:    s.Name,
		SHA:        subject.SHA,
		Branch:     subject.Branch,
		Repo:       subject.Repo,
		State:      goal.Planned,
		Goals:      members,
		Ts:         p.Ts,
		Provenance: provenance,
	}
	return events, set, nil
}

// Apply persists a materialized goal set: the push record, every
// planned goal event, and the goal-set record.
func Apply(ctx context.Context, st *store.Store, subject goal.CommitRef, push goal.Push, events []goal.Event, set goal.Set) error {
	if err := st.RecordPush(ctx, subject, push, set.Ts); err != nil {
		return fmt.Errorf("record push %s: %w", subject.SHA, err)
	}
	for _, e := range events {
		if err := st.AppendEvent(ctx, e); err != nil {
			return fmt.Errorf("append goal %s: %w", e.Key(), err)
		}
	}
	if err := st.AppendSet(ctx, set); err != nil {
		return fmt.Errorf("append goal set %s: %w", set.GoalSetID, err)
	}
	return nil
}
