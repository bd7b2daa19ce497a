package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"goalflow/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Scenario string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml | directory>",
		Short: "Run pipeline scenarios against an in-memory deployment",
		Long: `Run one scenario file, or every *.yaml scenario in a directory, through
a throwaway database. Each scenario plans its pipeline, plays its steps
through the reaction loop and checks the declared assertions.

Exit codes: 0 all scenarios passed, 1 assertion failures, 2 bad input.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Scenario = args[0]
			return runTest(opts, cmd)
		},
	}

	return cmd
}

func runTest(opts *TestOptions, cmd *cobra.Command) error {
	scenarios, err := loadScenarios(opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tmp, err := os.MkdirTemp("", "goalflow-test-*")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create working directory", err)
	}
	defer os.RemoveAll(tmp)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	results := make([]*harness.Result, 0, len(scenarios))
	failed := 0

	for i, sc := range scenarios {
		dbPath := filepath.Join(tmp, fmt.Sprintf("scenario-%d.db", i))
		runner, err := harness.NewRunner(sc, dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to start scenario %s", sc.Name), err)
		}
		res, err := runner.Run(ctx)
		runner.Close()
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s aborted", sc.Name), err)
		}
		results = append(results, res)

		if res.OK() {
			out.Textf("ok    %s\n", res.Scenario)
			continue
		}
		failed++
		out.Textf("FAIL  %s\n", res.Scenario)
		for _, f := range res.Failures {
			out.Textf("      %s\n", f)
		}
	}

	out.Textf("\n%d scenario(s), %d failed\n", len(results), failed)
	if err := out.Success(struct {
		Scenarios []*harness.Result `json:"scenarios"`
		Failed    int               `json:"failed"`
	}{results, failed}); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

func loadScenarios(path string) ([]*harness.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		scenarios, err := harness.LoadScenarioDir(path)
		if err != nil {
			return nil, err
		}
		if len(scenarios) == 0 {
			return nil, fmt.Errorf("no scenario files in %s", path)
		}
		return scenarios, nil
	}
	sc, err := harness.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return []*harness.Scenario{sc}, nil
}
