package cli

import (
	"goalflow/internal/config"
	"goalflow/internal/engine"
	"goalflow/internal/store"
)

// runtime bundles the store and engine operator commands act through.
// Mutations made here get the same version, provenance, and signature
// treatment as the reaction loop's.
type runtime struct {
	cfg    config.Config
	store  *store.Store
	engine *engine.Engine
}

func openRuntime(configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	signer, err := cfg.BuildSigner()
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to configure signing", err)
	}

	mutator := engine.NewMutator(st, signer, engine.SystemClock{}, engine.UUIDv7Generator{}, engine.Registration{
		Name:    cfg.Registration.Name,
		Version: cfg.Registration.Version,
	})
	return &runtime{
		cfg:    cfg,
		store:  st,
		engine: engine.New(st, mutator),
	}, nil
}

func (r *runtime) Close() {
	_ = r.store.Close()
}
