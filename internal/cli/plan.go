package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"goalflow/internal/config"
	"goalflow/internal/engine"
	"goalflow/internal/goal"
	"goalflow/internal/plan"
	"goalflow/internal/store"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Config string

	RepoOwner string
	RepoName  string
	Provider  string
	Branch    string
	SHA       string
	Author    string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <pipeline.cue>",
		Short: "Plan a goal set for a commit",
		Long: `Compile a CUE pipeline definition and plan its goal set for a commit.

Records the push, appends the version-1 planned goal events, and writes
the initial goal-set record.

Example:
  goalflow plan ./pipeline.cue --config goalflow.yaml \
    --repo-owner acme --repo-name widget --branch main --sha f00dfeed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML configuration (required)")
	cmd.Flags().StringVar(&opts.RepoOwner, "repo-owner", "", "repository owner (required)")
	cmd.Flags().StringVar(&opts.RepoName, "repo-name", "", "repository name (required)")
	cmd.Flags().StringVar(&opts.Provider, "provider", "github", "repository provider id")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "branch of the pushed commit (required)")
	cmd.Flags().StringVar(&opts.SHA, "sha", "", "SHA of the pushed commit (required)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "author of the push")
	for _, flag := range []string{"config", "repo-owner", "repo-name", "branch", "sha"} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}

func runPlan(opts *PlanOptions, pipelinePath string, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	spec, err := plan.Load(pipelinePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile pipeline", err)
	}
	if errs := plan.Validate(spec); len(errs) > 0 {
		return WrapExitError(ExitCommandError, "invalid pipeline", errs[0])
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() { _ = st.Close() }()

	subject := goal.CommitRef{
		Repo:   goal.Repo{Name: opts.RepoName, Owner: opts.RepoOwner, ProviderID: opts.Provider},
		Branch: opts.Branch,
		SHA:    opts.SHA,
	}
	ids := engine.UUIDv7Generator{}
	params := plan.MaterializeParams{
		GoalSetID:     ids.Generate(),
		Ts:            time.Now().UnixMilli(),
		Registration:  cfg.Registration.Name,
		Version:       cfg.Registration.Version,
		CorrelationID: ids.Generate(),
	}

	events, set, err := plan.Materialize(spec, subject, params)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to plan goal set", err)
	}

	push := goal.Push{Author: opts.Author, AfterSHA: opts.SHA, Branch: opts.Branch}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := plan.Apply(ctx, st, subject, push, events, set); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist goal set", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	out.Textf("Planned goal set %s (%s) for %s@%s\n", params.GoalSetID, spec.Name, opts.RepoName, shortSHA(opts.SHA))
	for _, e := range events {
		out.Textf("  %s/%s  %s\n", e.Environment, e.UniqueName, e.State)
	}
	return out.Success(struct {
		GoalSetID string       `json:"goal_set_id"`
		GoalSet   string       `json:"goal_set"`
		Goals     []goal.Event `json:"goals"`
	}{params.GoalSetID, spec.Name, events})
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
