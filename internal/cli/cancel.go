package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// CancelOptions holds flags for the cancel command.
type CancelOptions struct {
	*RootOptions
	Config    string
	GoalSetID string
	All       bool
	User      string
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CancelOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a goal set, or every pending one",
		Long: `Cancel a goal set: every member goal that has not reached a terminal
state is moved to canceled, and the goal-set record follows. With --all
every pending goal set is canceled.

Example:
  goalflow cancel --config goalflow.yaml --goal-set 0195a1b2-... --user alice
  goalflow cancel --config goalflow.yaml --all --user alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.All == (opts.GoalSetID != "") {
				return NewExitError(ExitCommandError, "exactly one of --goal-set and --all is required")
			}
			return runCancel(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML configuration (required)")
	cmd.Flags().StringVar(&opts.GoalSetID, "goal-set", "", "goal set ID")
	cmd.Flags().BoolVar(&opts.All, "all", false, "cancel every pending goal set")
	cmd.Flags().StringVar(&opts.User, "user", "", "user to attribute the cancellation to")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

type canceledSet struct {
	GoalSetID string `json:"goal_set_id"`
	Canceled  int    `json:"canceled"`
}

func runCancel(opts *CancelOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts.Config)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ids := []string{opts.GoalSetID}
	if opts.All {
		sets, err := rt.store.ListPendingSets(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list pending goal sets", err)
		}
		ids = ids[:0]
		for _, gs := range sets {
			ids = append(ids, gs.GoalSetID)
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	results := make([]canceledSet, 0, len(ids))
	for _, id := range ids {
		n, err := rt.engine.CancelGoalSet(ctx, id, opts.User)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to cancel goal set", err)
		}
		results = append(results, canceledSet{GoalSetID: id, Canceled: n})
		out.Textf("Canceled %d goal(s) in %s\n", n, id)
	}
	if len(results) == 0 {
		out.Textf("No pending goal sets.\n")
	}

	if opts.All {
		return out.Success(struct {
			Sets []canceledSet `json:"sets"`
		}{results})
	}
	return out.Success(results[0])
}
