package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"goalflow/internal/goal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Config      string
	GoalSetID   string
	Environment string
	Goal        string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the event history of a goal set",
		Long: `Print every event appended for a goal set in order, oldest first.
With --environment and --goal the history is narrowed to a single goal.

Example:
  goalflow trace --config goalflow.yaml --goal-set 0195a1b2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML configuration (required)")
	cmd.Flags().StringVar(&opts.GoalSetID, "goal-set", "", "goal set ID (required)")
	cmd.Flags().StringVar(&opts.Environment, "environment", "", "narrow to one goal environment")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "narrow to one unique goal name")
	for _, flag := range []string{"config", "goal-set"} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts.Config)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	events, err := rt.store.ListGoalSetEvents(ctx, opts.GoalSetID)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to list events of goal set %s", opts.GoalSetID), err)
	}

	filtered := events[:0:0]
	for _, ev := range events {
		if opts.Environment != "" && ev.Environment != opts.Environment {
			continue
		}
		if opts.Goal != "" && ev.UniqueName != opts.Goal {
			continue
		}
		filtered = append(filtered, ev)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	for _, ev := range filtered {
		out.Textf("%s  v%-3d %-24s %-25s %s\n",
			time.UnixMilli(ev.Ts).UTC().Format(time.RFC3339),
			ev.Version,
			ev.Environment+"/"+ev.UniqueName,
			ev.State,
			ev.Description)
		if out.Verbose && ev.Phase != "" {
			out.Textf("    phase: %s\n", ev.Phase)
		}
	}
	if len(filtered) == 0 {
		out.Textf("No events for goal set %s\n", opts.GoalSetID)
	}
	return out.Success(struct {
		GoalSetID string       `json:"goal_set_id"`
		Events    []goal.Event `json:"events"`
	}{opts.GoalSetID, filtered})
}
