package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/labrig/internal/bootstrap"
	"github.com/vk/labrig/internal/config"
	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	model   *config.Model
	modules []registry.Module
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and the rig already
// loaded and validated. Passing no modules selects the production set.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var (
		model *config.Model
		err   error
	)
	if appConfig.RigPath != "" {
		model, err = loader.Load(ctx, appConfig.RigPath)
	} else {
		logger.Debug("No rig path given, using the builtin rig.")
		model, err = loader.LoadBytes(ctx, bootstrap.Filename, bootstrap.Rig())
	}
	if err != nil {
		// A failure to load the rig is a fatal startup error.
		panic(fmt.Errorf("failed to load rig: %w", err))
	}
	logger.Debug("Rig loaded.", "steps", len(model.Steps))

	return &App{
		outW:    outW,
		logger:  logger,
		model:   model,
		modules: modules,
	}
}

// Model returns the loaded rig model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
