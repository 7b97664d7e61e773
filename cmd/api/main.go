// Package main is the entry point for the gfsfetch API server.
//
// It loads configuration, wires the forecast stack (data server client,
// catalog store, metrics), mounts the HTTP routes on the core chassis and
// serves until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gfsfetch/internal/api/handlers"
	"gfsfetch/internal/app"
	"gfsfetch/internal/config"
	"gfsfetch/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// SSM is only consulted outside APP_ENV=local.
	cfg, err := config.LoadConfig(config.NewSecretProvider(nil))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)
	logger.Info("gfsfetch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()
	srv, stack, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	srv.Closers = append(srv.Closers, stack.Close)

	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires the forecast stack into a core.Server with routes mounted.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...app.Option) (*core.Server, *app.App, error) {
	stack, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		return nil, nil, err
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		_ = stack.Close()
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = append(srv.HealthProbes, stack.HealthProbes()...)

	forecastHandler := handlers.NewForecastHandler(
		stack.Client,
		stack.Catalog,
		cfg.Model.Product(),
		srv.Validator,
		logger.With("handler", "forecasts"),
	)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, forecastHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, stack, nil
}

// runHTTPServer serves until a signal arrives, then drains connections
// within the configured shutdown timeout.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// Queries may wait on two slow upstream calls, so the write timeout
	// follows the upstream timeout.
	writeTimeout := 2*cfg.Upstream.Timeout + 10*time.Second

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(handler).With("service", cfg.Service)
}
