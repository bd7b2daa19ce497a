package cli

import (
	"context"

	"github.com/spf13/cobra"
	"goalflow/internal/goal"
)

// ApproveOptions holds flags shared by the approve and pre-approve commands.
type ApproveOptions struct {
	*RootOptions
	Config      string
	GoalSetID   string
	Environment string
	Goal        string
	User        string
	Channel     string
}

// NewApproveCommand creates the approve command.
func NewApproveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApproveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a goal that is waiting for approval",
		Long: `Record an approval on a goal. A goal parked in waiting_for_approval
moves to approved and becomes eligible to run again.

Example:
  goalflow approve --config goalflow.yaml --goal-set 0195a1b2-... \
    --environment 1-production --goal deploy --user alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprove(opts, cmd, false)
		},
	}
	addApproveFlags(cmd, opts)

	return cmd
}

// NewPreApproveCommand creates the pre-approve command.
func NewPreApproveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApproveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pre-approve",
		Short: "Grant start approval to a goal gated on pre-approval",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprove(opts, cmd, true)
		},
	}
	addApproveFlags(cmd, opts)

	return cmd
}

func addApproveFlags(cmd *cobra.Command, opts *ApproveOptions) {
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML configuration (required)")
	cmd.Flags().StringVar(&opts.GoalSetID, "goal-set", "", "goal set ID (required)")
	cmd.Flags().StringVar(&opts.Environment, "environment", "", "goal environment, e.g. 1-production (required)")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "unique goal name (required)")
	cmd.Flags().StringVar(&opts.User, "user", "", "approving user (required)")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "channel the approval was issued from")
	for _, flag := range []string{"config", "goal-set", "environment", "goal", "user"} {
		_ = cmd.MarkFlagRequired(flag)
	}
}

func runApprove(opts *ApproveOptions, cmd *cobra.Command, pre bool) error {
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
	var ev goal.Event
	if pre {
		ev, err = rt.engine.PreApproveGoal(ctx, opts.GoalSetID, key, opts.User, opts.Channel)
	} else {
		ev, err = rt.engine.ApproveGoal(ctx, opts.GoalSetID, key, opts.User, opts.Channel)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to approve goal", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	out.Textf("%s\n", ev.Description)
	return out.Success(struct {
		Goal goal.Event `json:"goal"`
	}{ev})
}
