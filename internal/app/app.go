// Package app wires configuration into a ready engine.
// Both the CLI and the HTTP server start from here.
package app

import (
	"context"

	"go.uber.org/zap"

	"utility-bill/adapters/storage"
	"utility-bill/adapters/tariffile"
	"utility-bill/core/billing"
	"utility-bill/core/engine"
	"utility-bill/core/history"
	"utility-bill/core/tariff"
	"utility-bill/internal/config"
	"utility-bill/internal/errors"
)

// App holds the engine and the resources behind it
type App struct {
	Engine *engine.Engine
	KV     storage.KV
}

// Options are optional collaborators
type Options struct {
	Logger   *zap.Logger
	Recorder engine.Recorder
	Observer history.Observer
}

// Open builds an engine from cfg: tariff tables, storage backend, history
// store. Call Close when done.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tables, err := loadTables(cfg.Tariffs)
	if err != nil {
		return nil, err
	}

	calc, err := billing.NewCalculator(tables)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Summary.TimeLocation()
	if err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "invalid summary location", err)
	}

	kv, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.Storage("failed to open storage backend", err).
			WithContext("backend", string(cfg.Storage.Backend))
	}

	storeOpts := []history.Option{history.WithLogger(logger.Named("history"))}
	if opts.Observer != nil {
		storeOpts = append(storeOpts, history.WithObserver(opts.Observer))
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger.Named("engine")),
		engine.WithLocation(loc),
	}
	if opts.Recorder != nil {
		engineOpts = append(engineOpts, engine.WithRecorder(opts.Recorder))
	}

	logger.Debug("engine ready",
		zap.String("backend", string(cfg.Storage.Backend)),
		zap.String("tariffs", tariffSource(cfg.Tariffs)),
		zap.String("summary_location", loc.String()))

	return &App{
		Engine: engine.New(calc, history.NewStore(kv, storeOpts...), engineOpts...),
		KV:     kv,
	}, nil
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.KV.Close()
}

func loadTables(cfg config.TariffsConfig) (tariff.Tables, error) {
	if cfg.File == "" {
		return tariff.Builtin(), nil
	}
	return tariffile.Load(cfg.File)
}

func tariffSource(cfg config.TariffsConfig) string {
	if cfg.File == "" {
		return "builtin"
	}
	return cfg.File
}
