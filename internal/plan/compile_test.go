package plan

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalflow/internal/goal"
)

func compileString(t *testing.T, src string) (*Spec, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v.LookupPath(cue.ParsePath("pipeline")))
}

const pipelineSrc = `
pipeline: {
	name:        "build-deploy"
	environment: "0-code"
	goals: [
		{
			unique_name: "build"
			description: "Compile and package"
			fulfillment: {method: "sdm", name: "builder"}
		},
		{
			unique_name:       "deploy"
			name:              "Deploy to staging"
			environment:       "1-staging"
			requires:          ["0-code/build"]
			approval_required: true
			fulfillment: {method: "container"}
			data: {cluster: "staging"}
		},
	]
}
`

func TestCompile_FullPipeline(t *testing.T) {
	spec, err := compileString(t, pipelineSrc)
	require.NoError(t, err)

	assert.Equal(t, "build-deploy", spec.Name)
	assert.Equal(t, "0-code", spec.Environment)
	require.Len(t, spec.Goals, 2)

	build := spec.Goals[0]
	assert.Equal(t, "build", build.UniqueName)
	assert.Equal(t, "Compile and package", build.Description)
	assert.Equal(t, goal.Fulfillment{Method: goal.FulfillSDM, Name: "builder"}, build.Fulfillment)
	assert.False(t, build.ApprovalRequired)

	deploy := spec.Goals[1]
	assert.Equal(t, "Deploy to staging", deploy.Name)
	assert.Equal(t, "1-staging", deploy.Environment)
	assert.Equal(t, []string{"0-code/build"}, deploy.Requires)
	assert.True(t, deploy.ApprovalRequired)
	assert.Equal(t, goal.FulfillContainer, deploy.Fulfillment.Method)
	assert.JSONEq(t, `{"cluster":"staging"}`, deploy.Data)
}

func TestCompile_FulfillmentDefaults(t *testing.T) {
	spec, err := compileString(t, `
pipeline: {
	name:        "minimal"
	environment: "0-code"
	goals: [{unique_name: "build"}]
}
`)
	require.NoError(t, err)
	assert.Equal(t, goal.Fulfillment{Method: goal.FulfillSDM, Name: "build"}, spec.Goals[0].Fulfillment)
}

func TestCompile_MissingName(t *testing.T) {
	_, err := compileString(t, `
pipeline: {
	goals: [{unique_name: "build"}]
}
`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "name", ce.Field)
}

func TestCompile_MissingGoals(t *testing.T) {
	_, err := compileString(t, `pipeline: {name: "empty"}`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "goals", ce.Field)
}

func TestCompile_GoalWithoutUniqueName(t *testing.T) {
	_, err := compileString(t, `
pipeline: {
	name:  "broken"
	goals: [{description: "nameless"}]
}
`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "unique_name", ce.Field)
}
