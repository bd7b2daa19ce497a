package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPipelineCUE = `
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
			environment:       "1-staging"
			requires:          ["0-code/build"]
			approval_required: true
		},
	]
}
`

// writeTestConfig writes a minimal runtime config pointing at a
// database file inside dir, and returns the config path.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfgPath := filepath.Join(dir, "goalflow.yaml")
	cfg := "database: " + filepath.Join(dir, "goalflow.db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func writeTestPipeline(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pipeline.cue")
	require.NoError(t, os.WriteFile(path, []byte(testPipelineCUE), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// executeJSON runs the root command in JSON mode and decodes the
// response payload into out.
func executeJSON(t *testing.T, out any, args ...string) {
	t.Helper()
	stdout, err := execute(t, append(args, "--format", "json")...)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

// planTestPipeline plans the fixture pipeline and returns the config
// path and the new goal set ID.
func planTestPipeline(t *testing.T, dir string) (cfgPath, goalSetID string) {
	t.Helper()
	cfgPath = writeTestConfig(t, dir)
	pipeline := writeTestPipeline(t, dir)

	var planned struct {
		GoalSetID string `json:"goal_set_id"`
	}
	executeJSON(t, &planned,
		"plan", pipeline,
		"--config", cfgPath,
		"--repo-owner", "acme",
		"--repo-name", "widget",
		"--branch", "main",
		"--sha", "f00dfeedf00dfeedf00dfeedf00dfeedf00dfeed",
		"--author", "dev",
	)
	require.NotEmpty(t, planned.GoalSetID)
	return cfgPath, planned.GoalSetID
}
