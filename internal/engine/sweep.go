package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"goalflow/internal/goal"
	"goalflow/internal/store"
)

// SweepConfig controls the timeout sweeper.
type SweepConfig struct {
	// Interval between sweeps.
	Interval time.Duration

	// Timeout is how long a goal may sit in WatchedState before it is
	// moved to TerminalState.
	Timeout time.Duration

	// WatchedState is the in-flight state being timed out.
	WatchedState goal.State

	// TerminalState is the state timed-out goals are moved to.
	TerminalState goal.State

	// Primary gates the sweep: only the primary worker of a deployment
	// sweeps, so concurrent replicas do not race each other.
	Primary bool
}

// DefaultSweepConfig returns the standard sweep settings: every 30
// seconds, cancel goals stuck in_process for over an hour.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval:      30 * time.Second,
		Timeout:       time.Hour,
		WatchedState:  goal.InProcess,
		TerminalState: goal.Canceled,
		Primary:       true,
	}
}

// Sweeper periodically times out goals stuck in flight and reconciles
// goal-set records whose aggregate state has drifted from their
// members.
type Sweeper struct {
	store   *store.Store
	mutator *Mutator
	clock   Clock
	cfg     SweepConfig
	log     *slog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(st *store.Store, m *Mutator, clock Clock, cfg SweepConfig, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{store: st, mutator: m, clock: clock, cfg: cfg, log: log}
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.log.Error("sweep failed", "error", err)
			} else if n > 0 {
				s.log.Info("sweep timed out goals", "count", n)
			}
		}
	}
}

// SweepOnce examines every pending goal set once, times out stale
// goals, and reconciles drifted goal-set records. It returns the number
// of goals timed out.
//
// A concurrent mutation to a swept goal surfaces as
// store.ErrStaleVersion; the sweep logs it and moves on, since the
// other writer has already advanced the goal.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if !s.cfg.Primary {
		return 0, nil
	}

	sets, err := s.store.ListPendingSets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending goal sets: %w", err)
	}

	now := s.clock.Now()
	cutoff := now - s.cfg.Timeout.Milliseconds()
	timedOut := 0

	for _, gs := range sets {
		events, err := s.store.ListGoalSetEvents(ctx, gs.GoalSetID)
		if err != nil {
			return timedOut, fmt.Errorf("list events of goal set %s: %w", gs.GoalSetID, err)
		}
		goals := goal.Reduce(events)

		for _, g := range goals {
			if g.State != s.cfg.WatchedState || g.Ts >= cutoff {
				continue
			}
			age := time.Duration(now-g.Ts) * time.Millisecond
			phase := fmt.Sprintf("timed out after %s", age.Round(time.Second))
			_, err := s.mutator.Update(ctx, g, Update{
				State:       s.cfg.TerminalState,
				Description: fmt.Sprintf("Timed out: %s", g.Name),
				Phase:       &phase,
			})
			if errors.Is(err, store.ErrStaleVersion) {
				s.log.Debug("goal advanced concurrently, skipping timeout",
					"goal_set_id", g.GoalSetID,
					"goal", g.Key().String())
				continue
			}
			if err != nil {
				return timedOut, err
			}
			timedOut++
			s.log.Info("goal timed out",
				"goal_set_id", g.GoalSetID,
				"goal", g.Key().String(),
				"state", string(s.cfg.TerminalState),
				"age", age.Round(time.Second).String())
		}

		if err := s.reconcileSet(ctx, gs); err != nil {
			return timedOut, err
		}
	}
	return timedOut, nil
}

// reconcileSet recomputes the aggregate state of gs from its current
// members and appends a fresh goal-set record when it has drifted.
func (s *Sweeper) reconcileSet(ctx context.Context, gs goal.Set) error {
	events, err := s.store.ListGoalSetEvents(ctx, gs.GoalSetID)
	if err != nil {
		return fmt.Errorf("list events of goal set %s: %w", gs.GoalSetID, err)
	}
	goals := goal.Reduce(events)
	if len(goals) == 0 {
		return nil
	}

	state, err := goal.AggregateState(goals)
	if err != nil {
		return fmt.Errorf("aggregate goal set %s: %w", gs.GoalSetID, err)
	}
	if state == gs.State {
		return nil
	}

	next := gs
	next.State = state
	next.Ts = s.clock.Now()
	if err := s.store.AppendSet(ctx, next); err != nil {
		return fmt.Errorf("reconcile goal set %s: %w", gs.GoalSetID, err)
	}
	s.log.Info("goal set reconciled",
		"goal_set_id", gs.GoalSetID,
		"from", string(gs.State),
		"to", string(state))
	return nil
}
