package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalflow/internal/goal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "goalflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(uniqueName string, state goal.State, version, ts int64) goal.Event {
	return goal.Event{
		GoalSetID:   "gs-1",
		GoalSet:     "Delivery",
		Environment: "0-code",
		UniqueName:  uniqueName,
		Name:        uniqueName,
		SHA:         "f00dfeed",
		Branch:      "main",
		Repo:        goal.Repo{Name: "widget", Owner: "acme", ProviderID: "gh"},
		State:       state,
		Version:     version,
		Ts:          ts,
		Fulfillment: goal.Fulfillment{Method: goal.FulfillSDM, Name: uniqueName},
		Provenance: []goal.Provenance{
			{Name: "test", Registration: "acme/sdm", Version: "0.0.1", CorrelationID: "corr-1", Ts: ts},
		},
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goalflow.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s2.Close())
}

func TestAppendEvent_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := testEvent("build", goal.Planned, 1, 100)
	e.PreConditions = []goal.Key{{Environment: "0-code", UniqueName: "autofix", Name: "autofix"}}
	e.Approval = &goal.Approval{UserID: "alice", Ts: 99}
	e.ExternalURLs = []goal.ExternalURL{{Label: "log", URL: "https://logs/1"}}
	e.Data = `{"k":"v"}`
	require.NoError(t, s.AppendEvent(ctx, e))

	got, err := s.ListGoalSetEvents(ctx, "gs-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
}

func TestAppendEvent_NilApprovalStaysNil(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, testEvent("build", goal.Planned, 1, 100)))

	got, err := s.ListGoalSetEvents(ctx, "gs-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Approval)
	assert.Nil(t, got[0].PreApproval)
}

func TestAppendEvent_StaleVersionRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, testEvent("build", goal.Requested, 2, 100)))

	// A second worker built its mutation from the same base version.
	loser := testEvent("build", goal.InProcess, 2, 150)
	err := s.AppendEvent(ctx, loser)
	assert.ErrorIs(t, err, ErrStaleVersion)

	// Different version slots for the same goal are fine.
	assert.NoError(t, s.AppendEvent(ctx, testEvent("build", goal.InProcess, 3, 150)))
}

func TestAppendEvent_SameVersionDifferentGoalSets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, testEvent("build", goal.Planned, 1, 100)))

	other := testEvent("build", goal.Planned, 1, 100)
	other.GoalSetID = "gs-2"
	assert.NoError(t, s.AppendEvent(ctx, other))
}

func TestListEvents_PaginatesDeterministically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.AppendEvent(ctx, testEvent("build", goal.Planned, i, 100+i)))
	}

	subject := goal.CommitRef{
		Repo:   goal.Repo{Name: "widget", Owner: "acme", ProviderID: "gh"},
		Branch: "main",
		SHA:    "f00dfeed",
	}

	page1, err := s.ListEvents(ctx, subject, "", 0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.EqualValues(t, 1, page1[0].Version)
	assert.EqualValues(t, 2, page1[1].Version)

	page2, err := s.ListEvents(ctx, subject, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.EqualValues(t, 3, page2[0].Version)

	page3, err := s.ListEvents(ctx, subject, "", 4, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)

	empty, err := s.ListEvents(ctx, subject, "", 6, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListEvents_GoalSetFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, testEvent("build", goal.Planned, 1, 100)))
	other := testEvent("build", goal.Planned, 1, 100)
	other.GoalSetID = "gs-2"
	require.NoError(t, s.AppendEvent(ctx, other))

	subject := goal.CommitRef{
		Repo: goal.Repo{Name: "widget", Owner: "acme", ProviderID: "gh"},
		SHA:  "f00dfeed",
	}

	got, err := s.ListEvents(ctx, subject, "gs-2", 0, 200)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gs-2", got[0].GoalSetID)
}

func testSet(state goal.State, ts int64) goal.Set {
	return goal.Set{
		GoalSetID: "gs-1",
		GoalSet:   "Delivery",
		SHA:       "f00dfeed",
		Branch:    "main",
		Repo:      goal.Repo{Name: "widget", Owner: "acme", ProviderID: "gh"},
		State:     state,
		Goals:     []goal.SetMember{{Name: "build", UniqueName: "build"}},
		Ts:        ts,
	}
}

func TestAppendSet_LatestWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendSet(ctx, testSet(goal.Requested, 100)))
	require.NoError(t, s.AppendSet(ctx, testSet(goal.InProcess, 200)))

	got, err := s.LatestSet(ctx, "gs-1")
	require.NoError(t, err)
	assert.Equal(t, goal.InProcess, got.State)

	// Duplicate append is a no-op, not an error.
	assert.NoError(t, s.AppendSet(ctx, testSet(goal.InProcess, 200)))
}

func TestListPendingSets_ExcludesTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendSet(ctx, testSet(goal.InProcess, 100)))

	done := testSet(goal.Success, 100)
	done.GoalSetID = "gs-done"
	require.NoError(t, s.AppendSet(ctx, done))

	// gs-canceled went pending first, then reached a terminal state:
	// only its newest record counts.
	was := testSet(goal.InProcess, 100)
	was.GoalSetID = "gs-canceled"
	require.NoError(t, s.AppendSet(ctx, was))
	now := testSet(goal.Canceled, 200)
	now.GoalSetID = "gs-canceled"
	require.NoError(t, s.AppendSet(ctx, now))

	pending, err := s.ListPendingSets(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "gs-1", pending[0].GoalSetID)
}

func TestPush_RecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	subject := goal.CommitRef{
		Repo:   goal.Repo{Name: "widget", Owner: "acme", ProviderID: "gh"},
		Branch: "main",
		SHA:    "f00dfeed",
	}

	_, err := s.GetPush(ctx, subject)
	assert.ErrorIs(t, err, ErrCommitNotFound)

	push := goal.Push{Author: "alice", BeforeSHA: "0ddba11", Branch: "main"}
	require.NoError(t, s.RecordPush(ctx, subject, push, 100))

	got, err := s.GetPush(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, "0ddba11", got.BeforeSHA)
	assert.Equal(t, "f00dfeed", got.AfterSHA)

	// Replayed pushes keep the first record.
	require.NoError(t, s.RecordPush(ctx, subject, goal.Push{Author: "mallory"}, 200))
	got, err = s.GetPush(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Author)
}
