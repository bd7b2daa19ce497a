package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"goalflow/internal/engine"
	"goalflow/internal/goal"
	"goalflow/internal/plan"
	"goalflow/internal/store"
	"goalflow/internal/testutil"
)

const (
	scenarioBaseTs    = int64(1700000000000)
	scenarioGoalSetID = "scenario-goal-set"
)

var scenarioSubject = goal.CommitRef{
	Repo:   goal.Repo{Name: "scenario", Owner: "harness", ProviderID: "github"},
	Branch: "main",
	SHA:    "5cenar105cenar105cenar105cenar105cenar10",
}

// Result collects assertion failures from one scenario run.
type Result struct {
	Scenario string   `json:"scenario"`
	Failures []string `json:"failures,omitempty"`
}

// OK reports whether every assertion held.
func (r *Result) OK() bool {
	return len(r.Failures) == 0
}

// Runner executes one scenario against a fresh event log.
type Runner struct {
	scenario *Scenario
	store    *store.Store
	mutator  *engine.Mutator
	engine   *engine.Engine
	clock    *testutil.SteppingClock
}

// NewRunner plans the scenario's pipeline into the database at dbPath.
func NewRunner(sc *Scenario, dbPath string) (*Runner, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}

	clock := testutil.NewSteppingClock(scenarioBaseTs)
	ids := testutil.NewConstantIDGenerator(sc.CorrelationID)
	mutator := engine.NewMutator(st, nil, clock, ids, engine.Registration{
		Name:    "goalflow-harness",
		Version: "0.0.0",
	})
	eng := engine.New(st, mutator)

	events, set, err := plan.Materialize(sc.spec(), scenarioSubject, plan.MaterializeParams{
		GoalSetID:     scenarioGoalSetID,
		Ts:            clock.Now(),
		Registration:  "goalflow-harness",
		Version:       "0.0.0",
		CorrelationID: ids.Generate(),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	push := goal.Push{Author: "harness", AfterSHA: scenarioSubject.SHA, Branch: scenarioSubject.Branch}
	if err := plan.Apply(context.Background(), st, scenarioSubject, push, events, set); err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Runner{scenario: sc, store: st, mutator: mutator, engine: eng, clock: clock}, nil
}

// Close releases the runner's store.
func (r *Runner) Close() error {
	return r.store.Close()
}

// Run plays every step through the engine, then evaluates the
// assertions. A failed assertion lands in the Result; only a step that
// cannot be executed at all is an error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	for i, step := range r.scenario.Steps {
		if err := r.runStep(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Goal, err)
		}
	}

	res := &Result{Scenario: r.scenario.Name}
	goals, err := r.reducedGoals(ctx)
	if err != nil {
		return nil, err
	}

	for _, a := range r.scenario.Assertions {
		if a.Goal != "" {
			r.assertGoal(res, goals, a)
			continue
		}
		if err := r.assertSet(ctx, res, a); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("invalid advance %q: %w", step.Advance, err)
		}
		r.clock.Step(d)
	}

	key := r.stepKey(step.Goal)

	if step.Approve != "" {
		_, err := r.engine.ApproveGoal(ctx, scenarioGoalSetID, key, step.Approve, "")
		return err
	}
	if step.PreApprove != "" {
		_, err := r.engine.PreApproveGoal(ctx, scenarioGoalSetID, key, step.PreApprove, "")
		return err
	}

	goals, err := r.reducedGoals(ctx)
	if err != nil {
		return err
	}
	current := goal.FindByKey(goals, key)
	if current == nil {
		return fmt.Errorf("goal %s not found", key)
	}

	up := engine.Update{
		State:       goal.State(step.State),
		Description: step.Description,
		Error:       step.Error,
	}
	next, err := r.mutator.Update(ctx, *current, up)
	if err != nil {
		return err
	}
	return r.engine.HandleEvent(ctx, next)
}

func (r *Runner) assertGoal(res *Result, goals []goal.Event, a Assertion) {
	g := goal.FindByKey(goals, r.stepKey(a.Goal))
	if g == nil {
		res.Failures = append(res.Failures, fmt.Sprintf("goal %s: not found", a.Goal))
		return
	}
	if a.State != "" && g.State != goal.State(a.State) {
		res.Failures = append(res.Failures,
			fmt.Sprintf("goal %s: state %s, want %s", a.Goal, g.State, a.State))
	}
	if a.Version != nil && g.Version != *a.Version {
		res.Failures = append(res.Failures,
			fmt.Sprintf("goal %s: version %d, want %d", a.Goal, g.Version, *a.Version))
	}
}

func (r *Runner) assertSet(ctx context.Context, res *Result, a Assertion) error {
	latest, err := r.store.LatestSet(ctx, scenarioGoalSetID)
	if errors.Is(err, sql.ErrNoRows) {
		res.Failures = append(res.Failures, "goal set: no record")
		return nil
	}
	if err != nil {
		return err
	}
	if latest.State != goal.State(a.SetState) {
		res.Failures = append(res.Failures,
			fmt.Sprintf("goal set: state %s, want %s", latest.State, a.SetState))
	}
	return nil
}

func (r *Runner) reducedGoals(ctx context.Context) ([]goal.Event, error) {
	events, err := r.store.ListGoalSetEvents(ctx, scenarioGoalSetID)
	if err != nil {
		return nil, err
	}
	return goal.Reduce(events), nil
}

// stepKey resolves a scenario goal reference against the pipeline's
// default environment.
func (r *Runner) stepKey(ref string) goal.Key {
	if env, name, ok := strings.Cut(ref, "/"); ok {
		return goal.Key{Environment: env, UniqueName: name}
	}
	return goal.Key{Environment: r.scenario.Pipeline.Environment, UniqueName: ref}
}
