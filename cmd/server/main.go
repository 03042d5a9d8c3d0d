// Package main - Entry point for the utility bill HTTP server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"utility-bill/api"
	"utility-bill/internal/app"
	"utility-bill/internal/config"
	"utility-bill/internal/logging"
	"utility-bill/internal/metrics"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "Config file (JSON or YAML)")
	addr := flag.String("addr", "", "Server address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Sync()
	logging.Debug("configuration loaded",
		zap.String("config", *cfgPath),
		zap.String("backend", string(cfg.Storage.Backend)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.Options{Logger: logging.Logger}
	var serverOpts []api.Option
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics, nil)
		opts.Recorder = collector
		opts.Observer = collector
		serverOpts = append(serverOpts, api.WithMetrics(collector.Handler()))
	} else {
		logging.Warn("metrics disabled, /metrics is not served")
	}

	a, err := app.Open(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	serverOpts = append(serverOpts, api.WithLogger(logging.Named("http")))
	srv := api.NewServer(version, a.Engine, serverOpts...).HTTPServer(
		cfg.Server.Address,
		time.Duration(cfg.Server.ReadTimeoutSeconds)*time.Second,
		time.Duration(cfg.Server.WriteTimeoutSeconds)*time.Second,
	)

	errCh := make(chan error, 1)
	go func() {
		logging.Info("listening",
			zap.String("addr", cfg.Server.Address),
			zap.String("version", version),
			zap.String("backend", string(cfg.Storage.Backend)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Error("server stopped", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger := logging.With(zap.String("addr", cfg.Server.Address))
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
