package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"goalflow/internal/goal"
	"goalflow/internal/signing"
	"goalflow/internal/store"
)

// VerifyScope selects which goal events must carry a valid signature.
type VerifyScope string

const (
	// VerifyAll verifies every incoming goal event.
	VerifyAll VerifyScope = "all"

	// VerifyFulfillment verifies only goals this runtime is responsible
	// for executing (sdm and container fulfillment).
	VerifyFulfillment VerifyScope = "fulfillment"
)

// Engine is the single-writer reaction loop over goal events.
//
// The engine processes goal events in FIFO order: it verifies the
// event's signature, loads the reduced goal set, and applies the
// reactions the event warrants (advancement after success, cascade
// after failure, aggregate recomputation).
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// All mutations happen through the Mutator; the append log's version
// conflict detection protects against writers outside this process.
type Engine struct {
	store      *store.Store
	mutator    *Mutator
	fetcher    *Fetcher
	verifier   *signing.Verifier
	scope      VerifyScope
	preparers  []GoalPreparer
	redirector *ContainerRedirector
	queue      *eventQueue
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithVerifier enables signature verification with the given trusted
// keys and scope.
func WithVerifier(v *signing.Verifier, scope VerifyScope) Option {
	return func(e *Engine) {
		e.verifier = v
		e.scope = scope
	}
}

// WithPreparers registers goal preparers run before a goal is
// requested, in order.
func WithPreparers(preparers ...GoalPreparer) Option {
	return func(e *Engine) {
		e.preparers = append(e.preparers, preparers...)
	}
}

// WithRedirector enables container fulfillment redirection.
func WithRedirector(r *ContainerRedirector) Option {
	return func(e *Engine) {
		e.redirector = r
	}
}

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an Engine reading from st and mutating through m.
func New(st *store.Store, m *Mutator, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		mutator: m,
		queue:   newEventQueue(),
		scope:   VerifyAll,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.fetcher = NewFetcher(st, e.log)
	return e
}

// Enqueue submits a goal event for processing.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev goal.Event) bool {
	return e.queue.Enqueue(ev)
}

// QueueLen returns the number of events awaiting processing.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the single-writer reaction loop.
// Blocks until the context is cancelled or Stop() is called.
//
// On reaction failure the error is logged with the event's coordinates
// and processing continues; a poisoned event must not stall the queue.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine starting")

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			if err := e.HandleEvent(ctx, ev); err != nil {
				e.log.Error("reaction failed",
					"goal_set_id", ev.GoalSetID,
					"goal", ev.Key().String(),
					"state", string(ev.State),
					"version", ev.Version,
					"error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.log.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed,
			// which fires this case immediately.
			if e.queue.Len() == 0 {
				e.log.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the event queue, which causes Run() to return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// HandleEvent applies every reaction ev warrants. It is exported so
// synchronous callers (tests, CLI replay) can drive the engine without
// the queue.
func (e *Engine) HandleEvent(ctx context.Context, ev goal.Event) error {
	if !ev.State.Valid() {
		return &ReactionError{
			Code:      ErrCodeUnknownState,
			Message:   fmt.Sprintf("event carries unknown state %q", ev.State),
			GoalSetID: ev.GoalSetID,
			Key:       ev.Key(),
		}
	}

	if err := e.verify(ctx, ev); err != nil {
		return err
	}

	goals, err := e.fetcher.FetchGoals(ctx, ev.Subject(), ev.GoalSetID)
	if err != nil {
		return err
	}
	current := goal.FindByKey(goals, ev.Key())
	if current == nil {
		e.log.Warn("event for unknown goal",
			"goal_set_id", ev.GoalSetID,
			"goal", ev.Key().String())
		return nil
	}

	if e.redirector != nil &&
		ev.State == goal.Requested &&
		e.redirector.Supports(current) &&
		current.Fulfillment.Registration == "" {
		if _, err := e.redirector.Redirect(ctx, e.mutator, *current); err != nil {
			return err
		}
		return nil
	}

	switch ev.State {
	case goal.Success:
		if err := AdvanceDependents(ctx, e.mutator, *current, goals, e.preparers, e.log); err != nil {
			return err
		}
	case goal.Failure, goal.Stopped, goal.Canceled:
		if err := CascadeFailure(ctx, e.mutator, *current, goals, e.log); err != nil {
			return err
		}
	}

	// Aggregate recomputation is best-effort: a drifted goal-set record
	// is caught by the next sweep.
	if err := e.updateSetState(ctx, ev.GoalSetID); err != nil {
		e.log.Error("goal set aggregate update failed",
			"goal_set_id", ev.GoalSetID,
			"error", err)
	}
	return nil
}

// verify enforces the signature policy on ev. Events outside the
// configured scope pass through; in-scope events with a missing or
// invalid signature are marked failed and the rejection is returned.
//
// A rejection record itself (failure with a signature-reason phase) is
// never re-verified, so a rejection cannot cascade into more
// rejections.
func (e *Engine) verify(ctx context.Context, ev goal.Event) error {
	if e.verifier == nil {
		return nil
	}
	if e.scope == VerifyFulfillment && !locallyFulfilled(ev) {
		return nil
	}
	if alreadyRejected(ev) {
		return nil
	}

	err := e.verifier.Verify(&ev)
	if err == nil {
		return nil
	}
	if !errors.Is(err, signing.ErrSignatureMissing) && !errors.Is(err, signing.ErrSignatureInvalid) {
		return fmt.Errorf("verify goal %s: %w", ev.Key(), err)
	}

	reason := signing.ReasonSignatureInvalid
	if errors.Is(err, signing.ErrSignatureMissing) {
		reason = signing.ReasonSignatureMissing
	}
	phase := reason
	if _, uerr := e.mutator.Update(ctx, ev, Update{
		State:       goal.Failure,
		Description: fmt.Sprintf("Rejected: %s", ev.Name),
		Phase:       &phase,
		Error:       reason,
	}); uerr != nil && !errors.Is(uerr, store.ErrStaleVersion) {
		return fmt.Errorf("mark goal %s rejected: %w", ev.Key(), uerr)
	}

	return &ReactionError{
		Code:      ErrCodeSignatureRejected,
		Message:   reason,
		GoalSetID: ev.GoalSetID,
		Key:       ev.Key(),
		Err:       err,
	}
}

func locallyFulfilled(ev goal.Event) bool {
	return ev.Fulfillment.Method == goal.FulfillSDM || ev.Fulfillment.Method == goal.FulfillContainer
}

func alreadyRejected(ev goal.Event) bool {
	return ev.State == goal.Failure &&
		(ev.Phase == signing.ReasonSignatureMissing || ev.Phase == signing.ReasonSignatureInvalid)
}

// updateSetState recomputes the aggregate state of the goal set and
// appends a fresh goal-set record when it changed.
func (e *Engine) updateSetState(ctx context.Context, goalSetID string) error {
	events, err := e.store.ListGoalSetEvents(ctx, goalSetID)
	if err != nil {
		return fmt.Errorf("list events of goal set %s: %w", goalSetID, err)
	}
	goals := goal.Reduce(events)
	if len(goals) == 0 {
		return nil
	}

	state, err := goal.AggregateState(goals)
	if err != nil {
		return fmt.Errorf("aggregate goal set %s: %w", goalSetID, err)
	}

	prev, err := e.store.LatestSet(ctx, goalSetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load goal set %s: %w", goalSetID, err)
	}
	if prev.State == state {
		return nil
	}

	next := prev
	next.State = state
	next.Ts = e.mutator.clock.Now()
	if err := e.store.AppendSet(ctx, next); err != nil {
		return fmt.Errorf("append goal set %s: %w", goalSetID, err)
	}
	e.log.Info("goal set state",
		"goal_set_id", goalSetID,
		"from", string(prev.State),
		"to", string(state))
	return nil
}

// CancelGoalSet cancels every goal of the set that has not yet reached
// a terminal state and appends a canceled goal-set record. It returns
// the number of goals canceled.
func (e *Engine) CancelGoalSet(ctx context.Context, goalSetID string, userID string) (int, error) {
	events, err := e.store.ListGoalSetEvents(ctx, goalSetID)
	if err != nil {
		return 0, fmt.Errorf("list events of goal set %s: %w", goalSetID, err)
	}
	goals := goal.Reduce(events)
	if len(goals) == 0 {
		return 0, fmt.Errorf("goal set %s has no goals", goalSetID)
	}

	canceled := 0
	for _, g := range goals {
		if g.State.Terminal() {
			continue
		}
		phase := ""
		_, err := e.mutator.Update(ctx, g, Update{
			State:       goal.Canceled,
			Description: fmt.Sprintf("Canceled: %s", g.Name),
			Phase:       &phase,
			UserID:      userID,
		})
		if errors.Is(err, store.ErrStaleVersion) {
			continue
		}
		if err != nil {
			return canceled, err
		}
		canceled++
	}

	if err := e.updateSetState(ctx, goalSetID); err != nil {
		return canceled, err
	}
	return canceled, nil
}

// SetGoalState forces a goal into state on behalf of userID. Used by
// operator tooling; the mutation is recorded with full provenance like
// any other.
func (e *Engine) SetGoalState(ctx context.Context, goalSetID string, key goal.Key, state goal.State, userID string) (goal.Event, error) {
	current, err := e.findGoal(ctx, goalSetID, key)
	if err != nil {
		return goal.Event{}, err
	}
	next, err := e.mutator.Update(ctx, *current, Update{
		State:       state,
		Description: fmt.Sprintf("Set: %s", current.Name),
		UserID:      userID,
	})
	if err != nil {
		return goal.Event{}, err
	}
	if err := e.updateSetState(ctx, goalSetID); err != nil {
		e.log.Error("goal set aggregate update failed",
			"goal_set_id", goalSetID,
			"error", err)
	}
	return next, nil
}

// ApproveGoal records userID's approval of a goal parked in
// waiting_for_approval and moves it to approved.
func (e *Engine) ApproveGoal(ctx context.Context, goalSetID string, key goal.Key, userID, channelID string) (goal.Event, error) {
	current, err := e.findGoal(ctx, goalSetID, key)
	if err != nil {
		return goal.Event{}, err
	}
	correlationID := e.mutator.ids.Generate()
	return e.mutator.Update(ctx, *current, Update{
		State:       goal.Approved,
		Description: fmt.Sprintf("Approved: %s", current.Name),
		Approved: &goal.Approval{
			UserID:        userID,
			ChannelID:     channelID,
			CorrelationID: correlationID,
			Ts:            e.mutator.clock.Now(),
		},
		UserID:        userID,
		ChannelID:     channelID,
		CorrelationID: correlationID,
	})
}

// PreApproveGoal records userID's pre-approval of a goal parked in
// waiting_for_pre_approval and moves it to pre_approved.
func (e *Engine) PreApproveGoal(ctx context.Context, goalSetID string, key goal.Key, userID, channelID string) (goal.Event, error) {
	current, err := e.findGoal(ctx, goalSetID, key)
	if err != nil {
		return goal.Event{}, err
	}
	correlationID := e.mutator.ids.Generate()
	return e.mutator.Update(ctx, *current, Update{
		State:       goal.PreApproved,
		Description: fmt.Sprintf("Start approved: %s", current.Name),
		PreApproved: &goal.Approval{
			UserID:        userID,
			ChannelID:     channelID,
			CorrelationID: correlationID,
			Ts:            e.mutator.clock.Now(),
		},
		UserID:        userID,
		ChannelID:     channelID,
		CorrelationID: correlationID,
	})
}

func (e *Engine) findGoal(ctx context.Context, goalSetID string, key goal.Key) (*goal.Event, error) {
	events, err := e.store.ListGoalSetEvents(ctx, goalSetID)
	if err != nil {
		return nil, fmt.Errorf("list events of goal set %s: %w", goalSetID, err)
	}
	current := goal.FindByKey(goal.Reduce(events), key)
	if current == nil {
		return nil, fmt.Errorf("goal %s not found in goal set %s", key, goalSetID)
	}
	return current, nil
}
