package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/burstflow/internal/ctxlog"
	"github.com/vk/burstflow/internal/registry"
)

// App encapsulates the dependencies and configuration one burstflowctl
// invocation needs: its own logger and registry, isolated from any global
// state so tests can construct several in the same process.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	cfg      *Config
}

// NewApp builds an App, discovers and loads plugins (every compiled-in
// module when cfg.PluginsRoot is empty; otherwise only the compiled-in
// modules whose plugin directory is found under it), and returns an
// error rather than panicking on discovery failure — unlike config loading
// in a single-format system, plugin discovery is expected to encounter
// partial failures (one bad manifest) in normal operation.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("logger configured")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New(cfg.PluginsRoot, modules)
	if err := reg.Discover(ctx); err != nil {
		return nil, fmt.Errorf("discovering plugins: %w", err)
	}
	logger.Debug("plugin discovery complete", "plugins", len(reg.Plugins()))

	return &App{outW: outW, logger: logger, registry: reg, cfg: cfg}, nil
}

// Registry returns the application's registry, primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
