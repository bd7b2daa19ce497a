package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalflow/internal/goal"
)

func writeScenarioFile(path, src string) error {
	return os.WriteFile(path, []byte(src), 0o644)
}

func TestLoadScenario_FullShape(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "approval_gate.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "approval-gate", sc.Name)
	assert.Equal(t, "1-staging", sc.Pipeline.Environment)
	require.Len(t, sc.Pipeline.Goals, 2)
	assert.True(t, sc.Pipeline.Goals[0].ApprovalRequired)

	require.Len(t, sc.Steps, 3)
	assert.Equal(t, "alice", sc.Steps[1].Approve)
	assert.Equal(t, "60s", sc.Steps[1].Advance)
}

func TestScenarioSpec_FulfillmentDefaults(t *testing.T) {
	sc := &Scenario{
		Pipeline: Pipeline{
			Name:        "p",
			Environment: "0-code",
			Goals: []PipelineGoal{
				{UniqueName: "build"},
				{UniqueName: "deploy", Fulfillment: Fulfillment{Method: "container", Name: "deployer"}},
			},
		},
	}

	spec := sc.spec()
	assert.Equal(t, goal.Fulfillment{Method: goal.FulfillSDM, Name: "build"}, spec.Goals[0].Fulfillment)
	assert.Equal(t, goal.Fulfillment{Method: goal.FulfillContainer, Name: "deployer"}, spec.Goals[1].Fulfillment)
}

func TestLoadScenarioDir_SortedByFilename(t *testing.T) {
	scenarios, err := LoadScenarioDir("testdata")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(scenarios), 3)
	assert.Equal(t, "approval-gate", scenarios[0].Name)
	assert.Equal(t, "build-deploy", scenarios[1].Name)
	assert.Equal(t, "failure-cascade", scenarios[2].Name)
}
