package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"goalflow/internal/goal"
	"goalflow/internal/store"
)

const (
	testGoalSetID = "0195a1b2-0000-7000-8000-000000000001"
	testBaseTs    = int64(1700000000000)
)

var testSubject = goal.CommitRef{
	Repo:   goal.Repo{Name: "widget", Owner: "acme", ProviderID: "github"},
	Branch: "main",
	SHA:    "f00dfeedf00dfeedf00dfeedf00dfeedf00dfeed",
}

func newTestMutator(t *testing.T) (*store.Store, *Mutator, *FixedClock) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "goalflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := NewFixedClock(testBaseTs)
	m := NewMutator(st, nil, clock, UUIDv7Generator{}, Registration{
		Name:    "goalflow",
		Version: "0.1.0",
	})
	return st, m, clock
}

// seedGoal builds a version-1 planned-pipeline event for the shared
// test subject. Dependencies are expressed as preconditions on the
// named goals.
func seedGoal(name string, state goal.State, deps ...string) goal.Event {
	var pres []goal.Key
	for _, dep := range deps {
		pres = append(pres, goal.Key{Environment: "0-code", UniqueName: dep})
	}
	return goal.Event{
		Environment:   "0-code",
		UniqueName:    name,
		Name:          name,
		GoalSet:       "build-deploy",
		GoalSetID:     testGoalSetID,
		SHA:           testSubject.SHA,
		Branch:        testSubject.Branch,
		Repo:          testSubject.Repo,
		State:         state,
		Description:   "Planned: " + name,
		Version:       1,
		Ts:            testBaseTs,
		PreConditions: pres,
		Fulfillment:   goal.Fulfillment{Method: goal.FulfillSDM, Name: name + "-executor"},
	}
}

// seedPipeline appends the push record and the given goals to the
// store, then returns the reduced view.
func seedPipeline(t *testing.T, st *store.Store, goals ...goal.Event) []goal.Event {
	t.Helper()
	ctx := context.Background()

	err := st.RecordPush(ctx, testSubject, goal.Push{
		Author:   "dev",
		AfterSHA: testSubject.SHA,
		Branch:   testSubject.Branch,
	}, testBaseTs)
	require.NoError(t, err)

	for _, g := range goals {
		require.NoError(t, st.AppendEvent(ctx, g))
	}

	events, err := st.ListGoalSetEvents(ctx, testGoalSetID)
	require.NoError(t, err)
	return goal.Reduce(events)
}

// currentGoal re-reads the authoritative record for name.
func currentGoal(t *testing.T, st *store.Store, name string) goal.Event {
	t.Helper()
	events, err := st.ListGoalSetEvents(context.Background(), testGoalSetID)
	require.NoError(t, err)
	g := goal.FindByKey(goal.Reduce(events), goal.Key{Environment: "0-code", UniqueName: name})
	require.NotNil(t, g, "goal %s not found", name)
	return *g
}
