package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"goalflow/internal/goal"
)

// SetStateOptions holds flags for the set-state command.
type SetStateOptions struct {
	*RootOptions
	Config      string
	GoalSetID   string
	Environment string
	Goal        string
	State       string
	User        string
}

// NewSetStateCommand creates the set-state command.
func NewSetStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetStateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set-state",
		Short: "Force a goal into a given state",
		Long: `Append a state mutation for a single goal. The new event is fed through
the reaction loop, so forcing a goal to success advances its dependents
and forcing a failure cascades downstream.

Example:
  goalflow set-state --config goalflow.yaml --goal-set 0195a1b2-... \
    --environment 0-code --goal build --state success`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetState(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML configuration (required)")
	cmd.Flags().StringVar(&opts.GoalSetID, "goal-set", "", "goal set ID (required)")
	cmd.Flags().StringVar(&opts.Environment, "environment", "", "goal environment (required)")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "unique goal name (required)")
	cmd.Flags().StringVar(&opts.State, "state", "", "target state, e.g. success or failure (required)")
	cmd.Flags().StringVar(&opts.User, "user", "", "user to attribute the mutation to")
	for _, flag := range []string{"config", "goal-set", "environment", "goal", "state"} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}

func runSetState(opts *SetStateOptions, cmd *cobra.Command) error {
	state := goal.State(opts.State)
	if !state.Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown goal state %q", opts.State))
	}

	rt, err := openRuntime(opts.Config)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	key := goal.Key{Environment: opts.Environment, UniqueName: opts.Goal}
	ev, err := rt.engine.SetGoalState(ctx, opts.GoalSetID, key, state, opts.User)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set goal state", err)
	}
	if err := rt.engine.HandleEvent(ctx, ev); err != nil {
		return WrapExitError(ExitCommandError, "state recorded but reaction failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	out.Textf("%s/%s is now %s\n", ev.Environment, ev.UniqueName, ev.State)
	return out.Success(struct {
		Goal goal.Event `json:"goal"`
	}{ev})
}
