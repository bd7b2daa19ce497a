package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalflow/internal/goal"
	"goalflow/internal/signing"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *Mutator, *FixedClock) {
	t.Helper()
	st, m, clock := newTestMutator(t)
	e := New(st, m, opts...)
	return e, m, clock
}

func TestHandleEvent_SuccessAdvancesPipeline(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	build := seedGoal("build", goal.Success)
	deploy := seedGoal("deploy", goal.Planned, "build")
	verify := seedGoal("verify", goal.Planned, "deploy")
	seedPipeline(t, e.store, build, deploy, verify)
	seedSet(t, e.store, goal.InProcess, testBaseTs)

	require.NoError(t, e.HandleEvent(ctx, build))

	// deploy becomes requested; verify still waits on deploy.
	assert.Equal(t, goal.Requested, currentGoal(t, e.store, "deploy").State)
	assert.Equal(t, goal.Planned, currentGoal(t, e.store, "verify").State)
}

func TestHandleEvent_FailureCascades(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	build := seedGoal("build", goal.Failure)
	deploy := seedGoal("deploy", goal.Planned, "build")
	verify := seedGoal("verify", goal.Planned, "deploy")
	seedPipeline(t, e.store, build, deploy, verify)
	seedSet(t, e.store, goal.InProcess, testBaseTs)

	require.NoError(t, e.HandleEvent(ctx, build))

	assert.Equal(t, goal.Skipped, currentGoal(t, e.store, "deploy").State)
	assert.Equal(t, goal.Skipped, currentGoal(t, e.store, "verify").State)

	// The goal set aggregate followed the failure.
	latest, err := e.store.LatestSet(ctx, testGoalSetID)
	require.NoError(t, err)
	assert.Equal(t, goal.Failure, latest.State)
}

func TestHandleEvent_AggregateSuccess(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	build := seedGoal("build", goal.Success)
	deploy := seedGoal("deploy", goal.Success)
	seedPipeline(t, e.store, build, deploy)
	seedSet(t, e.store, goal.InProcess, testBaseTs)

	require.NoError(t, e.HandleEvent(ctx, deploy))

	latest, err := e.store.LatestSet(ctx, testGoalSetID)
	require.NoError(t, err)
	assert.Equal(t, goal.Success, latest.State)
}

func TestHandleEvent_RejectsUnknownState(t *testing.T) {
	e, _, _ := newTestEngine(t)

	ev := seedGoal("build", goal.State("exploded"))
	err := e.HandleEvent(context.Background(), ev)
	require.Error(t, err)

	var re *ReactionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownState, re.Code)
}

func TestHandleEvent_UnsignedEventMarkedFailed(t *testing.T) {
	_, verifier := testVerifier(t)
	e, _, _ := newTestEngine(t, WithVerifier(verifier, VerifyAll))
	ctx := context.Background()

	build := seedGoal("build", goal.InProcess)
	seedPipeline(t, e.store, build)

	err := e.HandleEvent(ctx, build)
	require.Error(t, err)
	assert.True(t, IsSignatureRejection(err))

	got := currentGoal(t, e.store, "build")
	assert.Equal(t, goal.Failure, got.State)
	assert.Equal(t, signing.ReasonSignatureMissing, got.Phase)
}

func TestHandleEvent_SignedEventPasses(t *testing.T) {
	signer, verifier := testVerifier(t)
	e, m, _ := newTestEngine(t, WithVerifier(verifier, VerifyAll))
	ctx := context.Background()

	m.signer = signer

	build := seedGoal("build", goal.InProcess)
	deploy := seedGoal("deploy", goal.Planned, "build")
	seedPipeline(t, e.store, build, deploy)

	// A mutation through the signing mutator produces a verifiable event.
	next, err := m.Update(ctx, build, Update{State: goal.Success})
	require.NoError(t, err)

	require.NoError(t, e.HandleEvent(ctx, next))
	assert.Equal(t, goal.Requested, currentGoal(t, e.store, "deploy").State)
}

func TestHandleEvent_RejectionNotReverified(t *testing.T) {
	_, verifier := testVerifier(t)
	e, _, _ := newTestEngine(t, WithVerifier(verifier, VerifyAll))
	ctx := context.Background()

	rejected := seedGoal("build", goal.Failure)
	rejected.Phase = signing.ReasonSignatureMissing
	seedPipeline(t, e.store, rejected)

	// The rejection record is itself unsigned, but processing it must
	// not produce another rejection.
	require.NoError(t, e.HandleEvent(ctx, rejected))
	assert.Equal(t, int64(1), currentGoal(t, e.store, "build").Version)
}

func TestHandleEvent_FulfillmentScopeSkipsObservedGoals(t *testing.T) {
	_, verifier := testVerifier(t)
	e, _, _ := newTestEngine(t, WithVerifier(verifier, VerifyFulfillment))
	ctx := context.Background()

	observed := seedGoal("external-audit", goal.Success)
	observed.Fulfillment = goal.Fulfillment{Method: goal.FulfillSideEffect, Name: "auditor"}
	seedPipeline(t, e.store, observed)

	// Unsigned, but side-effect goals are outside the fulfillment scope.
	require.NoError(t, e.HandleEvent(ctx, observed))
	assert.Equal(t, goal.Success, currentGoal(t, e.store, "external-audit").State)
}

func TestHandleEvent_RedirectsContainerGoal(t *testing.T) {
	r := NewContainerRedirector("k8s-prod", nil)
	e, _, _ := newTestEngine(t, WithRedirector(r))
	ctx := context.Background()

	deploy := seedGoal("deploy", goal.Requested)
	deploy.Fulfillment = goal.Fulfillment{Method: goal.FulfillContainer, Name: "deploy"}
	seedPipeline(t, e.store, deploy)

	require.NoError(t, e.HandleEvent(ctx, deploy))

	got := currentGoal(t, e.store, "deploy")
	assert.Equal(t, goal.Requested, got.State)
	assert.Equal(t, "scheduled", got.Phase)
	assert.Equal(t, "k8s-prod", got.Fulfillment.Registration)

	// The redirected event is final: handling it again must not
	// redirect a second time.
	require.NoError(t, e.HandleEvent(ctx, got))
	assert.Equal(t, got.Version, currentGoal(t, e.store, "deploy").Version)
}

func TestCancelGoalSet(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	build := seedGoal("build", goal.Success)
	deploy := seedGoal("deploy", goal.InProcess, "build")
	verify := seedGoal("verify", goal.Planned, "deploy")
	seedPipeline(t, e.store, build, deploy, verify)
	seedSet(t, e.store, goal.InProcess, testBaseTs)

	n, err := e.CancelGoalSet(ctx, testGoalSetID, "operator")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Terminal goals keep their state; in-flight goals are canceled.
	assert.Equal(t, goal.Success, currentGoal(t, e.store, "build").State)
	assert.Equal(t, goal.Canceled, currentGoal(t, e.store, "deploy").State)
	assert.Equal(t, goal.Canceled, currentGoal(t, e.store, "verify").State)

	latest, err := e.store.LatestSet(ctx, testGoalSetID)
	require.NoError(t, err)
	assert.Equal(t, goal.Canceled, latest.State)
}

func TestApproveGoal(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	deploy := seedGoal("deploy", goal.WaitingForApproval)
	deploy.ApprovalRequired = true
	seedPipeline(t, e.store, deploy)

	next, err := e.ApproveGoal(ctx, testGoalSetID, deploy.Key(), "alice", "releases")
	require.NoError(t, err)

	assert.Equal(t, goal.Approved, next.State)
	require.NotNil(t, next.Approval)
	assert.Equal(t, "alice", next.Approval.UserID)
	assert.Equal(t, "releases", next.Approval.ChannelID)
	assert.Equal(t, clock.Now(), next.Approval.Ts)
	assert.Equal(t, "alice", next.Provenance[0].UserID)

	// With the approval recorded, a later success is not redirected.
	m := e.mutator
	final, err := m.Update(ctx, next, Update{State: goal.Success})
	require.NoError(t, err)
	assert.Equal(t, goal.Success, final.State)
}

func TestPreApproveGoal(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	deploy := seedGoal("deploy", goal.WaitingForPreApproval)
	deploy.PreApprovalRequired = true
	seedPipeline(t, e.store, deploy)

	next, err := e.PreApproveGoal(ctx, testGoalSetID, deploy.Key(), "bob", "releases")
	require.NoError(t, err)

	assert.Equal(t, goal.PreApproved, next.State)
	require.NotNil(t, next.PreApproval)
	assert.Equal(t, "bob", next.PreApproval.UserID)
}

func TestSetGoalState(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	build := seedGoal("build", goal.Failure)
	seedPipeline(t, e.store, build)
	seedSet(t, e.store, goal.Failure, testBaseTs)

	next, err := e.SetGoalState(ctx, testGoalSetID, build.Key(), goal.Success, "operator")
	require.NoError(t, err)
	assert.Equal(t, goal.Success, next.State)
	assert.Equal(t, "operator", next.Provenance[0].UserID)

	latest, err := e.store.LatestSet(ctx, testGoalSetID)
	require.NoError(t, err)
	assert.Equal(t, goal.Success, latest.State)
}

func TestEngineRunDrainsQueue(t *testing.T) {
	e, _, _ := newTestEngine(t)

	build := seedGoal("build", goal.Success)
	deploy := seedGoal("deploy", goal.Planned, "build")
	seedPipeline(t, e.store, build, deploy)

	require.True(t, e.Enqueue(build))
	e.Stop()

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, goal.Requested, currentGoal(t, e.store, "deploy").State)
	assert.False(t, e.Enqueue(build))
}

func testVerifier(t *testing.T) (*signing.Signer, *signing.Verifier) {
	t.Helper()
	return newTestSigner(t)
}
