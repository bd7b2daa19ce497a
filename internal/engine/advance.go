package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"goalflow/internal/goal"
)

// Invocation carries the context handed to goal preparers before a goal
// is requested.
type Invocation struct {
	Subject   goal.CommitRef
	GoalSetID string
	Trigger   goal.Event
	Siblings  []goal.Event
}

// GoalPreparer enriches a goal right before it is requested, typically
// by resolving fulfillment details or seeding the data payload. The
// returned event replaces g for the request mutation.
type GoalPreparer func(ctx context.Context, inv Invocation, g goal.Event) (goal.Event, error)

// AdvanceDependents requests every direct dependent of trigger that is
// ready to run: still waiting (planned, skipped, or failed with retry
// feasible), expected to be fulfilled once requested, and with all
// preconditions met. Dependents that require pre-approval park in
// waiting_for_pre_approval instead.
//
// Transitions to distinct goals are applied concurrently; there is no
// ordering guarantee between them. The first error is returned after
// all transitions settle.
func AdvanceDependents(ctx context.Context, m *Mutator, trigger goal.Event, siblings []goal.Event, preparers []GoalPreparer, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	candidates, err := selectAdvanceCandidates(trigger, siblings)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	inv := Invocation{
		Subject:   trigger.Subject(),
		GoalSetID: trigger.GoalSetID,
		Trigger:   trigger,
		Siblings:  siblings,
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, dep := range candidates {
		wg.Add(1)
		go func(dep goal.Event) {
			defer wg.Done()
			if err := advanceOne(ctx, m, inv, dep, preparers, log); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(dep)
	}
	wg.Wait()
	return firstErr
}

// selectAdvanceCandidates filters siblings down to the direct dependents
// of trigger that are ready to be requested.
func selectAdvanceCandidates(trigger goal.Event, siblings []goal.Event) ([]goal.Event, error) {
	key := trigger.Key()

	var out []goal.Event
	for i := range siblings {
		dep := siblings[i]
		if !dep.DependsOn(key) {
			continue
		}
		if !waitingToRun(dep) {
			continue
		}
		if !expectedToBeFulfilled(dep, trigger) {
			continue
		}
		ok, err := goal.PreconditionsSatisfied(&dep, siblings)
		if err != nil {
			return nil, fmt.Errorf("evaluate preconditions of %s: %w", dep.Key(), err)
		}
		if !ok {
			continue
		}
		out = append(out, dep)
	}
	return out, nil
}

// waitingToRun reports whether g is in a state from which a request
// makes sense: never started, previously skipped, or failed with a
// retry worth attempting.
func waitingToRun(g goal.Event) bool {
	switch g.State {
	case goal.Planned, goal.Skipped:
		return true
	case goal.Failure:
		return g.RetryFeasible
	default:
		return false
	}
}

// expectedToBeFulfilled reports whether requesting dep would actually
// cause something to execute it. Side-effect goals are observed rather
// than executed, so requesting one is useless unless a different
// fulfillment than the trigger's will pick it up.
func expectedToBeFulfilled(dep, trigger goal.Event) bool {
	switch dep.Fulfillment.Method {
	case goal.FulfillSDM, goal.FulfillContainer, goal.FulfillOther:
		return true
	case goal.FulfillSideEffect:
		return dep.Fulfillment.Name != trigger.Fulfillment.Name
	default:
		return false
	}
}

func advanceOne(ctx context.Context, m *Mutator, inv Invocation, dep goal.Event, preparers []GoalPreparer, log *slog.Logger) error {
	if dep.PreApprovalRequired && dep.PreApproval == nil {
		phase := ""
		_, err := m.Update(ctx, dep, Update{
			State:       goal.WaitingForPreApproval,
			Description: fmt.Sprintf("Start required: %s", dep.Name),
			Phase:       &phase,
		})
		if err != nil {
			return err
		}
		log.Info("goal awaiting pre-approval",
			"goal_set_id", dep.GoalSetID,
			"goal", dep.Key().String())
		return nil
	}

	prepared := dep
	for _, prepare := range preparers {
		var err error
		prepared, err = prepare(ctx, inv, prepared)
		if err != nil {
			return fmt.Errorf("prepare goal %s: %w", dep.Key(), err)
		}
	}

	phase := ""
	up := Update{
		State:       goal.Requested,
		Description: fmt.Sprintf("Ready: %s", prepared.Name),
		Phase:       &phase,
		Data:        prepared.Data,
		Error:       "",
	}
	if prepared.Fulfillment != dep.Fulfillment {
		f := prepared.Fulfillment
		up.Fulfillment = &f
	}
	if _, err := m.Update(ctx, dep, up); err != nil {
		return err
	}
	log.Info("goal requested",
		"goal_set_id", dep.GoalSetID,
		"goal", dep.Key().String(),
		"after", inv.Trigger.Key().String())
	return nil
}
