package cli

import (
	"context"

	"github.com/spf13/cobra"

	"goalflow/internal/goal"
)

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	Config string
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List goal sets that have not reached a terminal state",
		Args:  cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML configuration (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runPending(opts *PendingOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts.Config)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sets, err := rt.store.ListPendingSets(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list pending goal sets", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if len(sets) == 0 {
		out.Textf("No pending goal sets.\n")
	}
	for _, gs := range sets {
		out.Textf("%s  %-22s %s/%s@%s  %s\n",
			gs.GoalSetID, gs.State, gs.Repo.Owner, gs.Repo.Name, shortSHA(gs.SHA), gs.GoalSet)
	}
	return out.Success(struct {
		Pending []goal.Set `json:"pending"`
	}{sets})
}
