package cli

import (
	"fmt"
	"os"

	"github.com/re-cinq/burl/internal/burlctx"
	"github.com/re-cinq/burl/internal/config"
	"github.com/re-cinq/burl/internal/engine"
	"github.com/re-cinq/burl/internal/fileutil"
)

// resolveEngine resolves the workflow context from the current directory,
// loads and validates its config, and builds an Engine — the common
// prelude to every subcommand but `init`.
func resolveEngine() (*engine.Engine, *config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getting working directory: %w", err)
	}

	ctx, err := burlctx.Resolve(cwd)
	if err != nil {
		return nil, nil, engine.UserError("%v", err)
	}

	if err := engine.RequireInitialized(ctx); err != nil {
		return nil, nil, err
	}

	cfg, err := loadAndValidateConfig(fileutil.ConfigPath(ctx.WorkflowState))
	if err != nil {
		return nil, nil, err
	}

	return engine.New(ctx, cfg), cfg, nil
}

// loadAndValidateConfig loads config.yaml and reports every validation
// problem found, not just the first.
func loadAndValidateConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, engine.UserError("loading config: %v", err)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config error: %s\n", e)
		}
		return nil, engine.UserError("%d config validation error(s)", len(errs))
	}
	return cfg, nil
}
