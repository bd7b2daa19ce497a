package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"goalflow/internal/config"
	"goalflow/internal/engine"
	"goalflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the goal reaction engine",
		Long: `Start the goalflow reaction engine.

The engine opens the SQLite event log (creating it if it doesn't
exist), verifies and reacts to incoming goal events, and runs the
background sweep that times out stuck goals.

Example:
  goalflow run --config ./goalflow.yaml
  goalflow run --config /etc/goalflow/goalflow.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML configuration (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	slog.Info("opening event log", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	signer, err := cfg.BuildSigner()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure signing", err)
	}
	verifier, err := cfg.BuildVerifier(signer)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure verification", err)
	}

	clock := engine.SystemClock{}
	mutator := engine.NewMutator(st, signer, clock, engine.UUIDv7Generator{}, engine.Registration{
		Name:    cfg.Registration.Name,
		Version: cfg.Registration.Version,
	})

	engineOpts := []engine.Option{}
	if verifier != nil {
		engineOpts = append(engineOpts, engine.WithVerifier(verifier, cfg.VerifyScope()))
	}
	if cfg.Redirect.Enabled {
		engineOpts = append(engineOpts,
			engine.WithRedirector(engine.NewContainerRedirector(cfg.Redirect.Registration, nil)))
	}
	eng := engine.New(st, mutator, engineOpts...)

	sweeper := engine.NewSweeper(st, mutator, clock, cfg.SweepConfig(), slog.Default())

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
			slog.Error("sweeper stopped", "error", err)
		}
	}()

	slog.Info("engine starting", "db", cfg.Database, "registration", cfg.Registration.Name)
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Listening for goal events...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := eng.Run(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("engine stopped gracefully")
	return nil
}
