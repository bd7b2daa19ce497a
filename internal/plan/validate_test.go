package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalflow/internal/goal"
)

func pipelineSpec(goals ...GoalSpec) *Spec {
	return &Spec{Name: "build-deploy", Environment: "0-code", Goals: goals}
}

func sdm(uniqueName string, requires ...string) GoalSpec {
	return GoalSpec{
		UniqueName:  uniqueName,
		Fulfillment: goal.Fulfillment{Method: goal.FulfillSDM, Name: uniqueName},
		Requires:    requires,
	}
}

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate_CleanSpec(t *testing.T) {
	errs := Validate(pipelineSpec(sdm("build"), sdm("test", "build"), sdm("deploy", "build", "test")))
	assert.Empty(t, errs)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	s := pipelineSpec(
		sdm("build"),
		sdm("build"),                 // duplicate
		sdm("deploy", "nonexistent"), // unknown dependency
	)
	s.Goals[2].Fulfillment.Method = "teleport" // invalid

	errs := Validate(s)
	assert.ElementsMatch(t, []string{ErrDuplicateGoal, ErrUnknownDependency, ErrInvalidFulfillment}, codes(errs))
}

func TestValidate_EmptyName(t *testing.T) {
	s := pipelineSpec(sdm("build"))
	s.Name = ""
	assert.Contains(t, codes(Validate(s)), ErrPipelineNameEmpty)
}

func TestValidate_NoGoals(t *testing.T) {
	assert.Contains(t, codes(Validate(pipelineSpec())), ErrNoGoals)
}

func TestValidate_NoEnvironment(t *testing.T) {
	s := pipelineSpec(sdm("build"))
	s.Environment = ""
	assert.Contains(t, codes(Validate(s)), ErrEnvironmentEmpty)
}

func TestValidate_SameNameDifferentEnvironments(t *testing.T) {
	deploy := sdm("deploy")
	deploy.Environment = "1-staging"
	errs := Validate(pipelineSpec(sdm("deploy"), deploy))
	assert.Empty(t, errs)
}

func TestValidate_DirectCycle(t *testing.T) {
	errs := Validate(pipelineSpec(sdm("a", "b"), sdm("b", "a")))
	require.NotEmpty(t, errs)
	assert.Contains(t, codes(errs), ErrDependencyCycle)
}

func TestValidate_SelfLoop(t *testing.T) {
	errs := Validate(pipelineSpec(sdm("a", "a")))
	assert.Contains(t, codes(errs), ErrDependencyCycle)
}

func TestValidate_TransitiveCycle(t *testing.T) {
	errs := Validate(pipelineSpec(sdm("a", "c"), sdm("b", "a"), sdm("c", "b")))
	assert.Contains(t, codes(errs), ErrDependencyCycle)
}

func TestFindCycles_DAGIsClean(t *testing.T) {
	// Diamond: no cycle.
	s := pipelineSpec(sdm("a"), sdm("b", "a"), sdm("c", "a"), sdm("d", "b", "c"))
	assert.Empty(t, findCycles(s))
}

func TestFindCycles_ReportsPath(t *testing.T) {
	cycles := findCycles(pipelineSpec(sdm("a", "b"), sdm("b", "a")))
	require.Len(t, cycles, 1)
	// The path closes the loop.
	path := cycles[0]
	assert.Equal(t, path[0], path[len(path)-1])
	assert.Len(t, path, 3)
}
