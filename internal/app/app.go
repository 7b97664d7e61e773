// Package app assembles the forecast client and its dependencies from a
// loaded configuration. Every binary builds one App at startup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"gfsfetch/internal/config"
	"gfsfetch/internal/core"
	"gfsfetch/internal/decode"
	"gfsfetch/internal/external"
	"gfsfetch/internal/forecasts"
	"gfsfetch/internal/metrics"
	"gfsfetch/internal/store"
	"gfsfetch/internal/types"
)

// App is the wired forecast stack.
type App struct {
	Config  *config.Config
	Clients *external.ClientRegistry
	Store   types.CatalogStore
	Catalog *forecasts.Catalog
	Client  *forecasts.Client

	closeStore func() error
	logger     *slog.Logger
}

// Option customises New.
type Option func(*options)

type options struct {
	registry []external.RegistryOption
	store    store.Deps
	clock    types.Clock
}

// WithRegistryOptions passes options through to external.NewClientRegistry.
func WithRegistryOptions(opts ...external.RegistryOption) Option {
	return func(o *options) { o.registry = append(o.registry, opts...) }
}

// WithClock overrides the clock used for run selection.
func WithClock(c types.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New builds the clients, opens the catalog store and wires the forecast
// client on top of them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := &options{clock: types.RealClock{}}
	for _, opt := range opts {
		opt(o)
	}

	clients, err := external.NewClientRegistry(ctx, cfg, logger, o.registry...)
	if err != nil {
		return nil, fmt.Errorf("building clients: %w", err)
	}

	deps := o.store
	if clients.S3 != nil {
		deps.S3 = clients.S3
	}
	opened, err := store.Open(ctx, cfg.Catalog, deps, logger.With("component", "catalog_store"))
	if err != nil {
		return nil, fmt.Errorf("opening catalog store: %w", err)
	}

	endpoints := forecasts.NewEndpoints(cfg.Upstream.BaseURL)
	catalogOpts := []forecasts.CatalogOption{
		forecasts.WithCatalogEndpoints(endpoints),
		forecasts.WithCatalogClock(o.clock),
		forecasts.WithCatalogLogger(logger.With("component", "catalog")),
	}
	clientOpts := []forecasts.ClientOption{
		forecasts.WithEndpoints(endpoints),
		forecasts.WithClock(o.clock),
		forecasts.WithLogger(logger.With("component", "forecasts")),
	}
	if clients.CloudWatch != nil {
		m := metrics.NewCloudWatchFetchMetrics(clients.CloudWatch, cfg.Observability.MetricNamespace, logger)
		catalogOpts = append(catalogOpts, forecasts.WithCatalogMetrics(m))
		clientOpts = append(clientOpts, forecasts.WithMetrics(m))
	}

	catalog := forecasts.NewCatalog(opened.Store, clients.DODS, catalogOpts...)
	client := forecasts.NewClient(catalog, clients.DODS, decode.NewASCIIDecoder(), clientOpts...)

	logger.Info("forecast stack ready",
		"catalog_backend", cfg.Catalog.Backend,
		"base_url", cfg.Upstream.BaseURL,
		"metrics", clients.CloudWatch != nil,
	)

	return &App{
		Config:     cfg,
		Clients:    clients,
		Store:      opened.Store,
		Catalog:    catalog,
		Client:     client,
		closeStore: opened.Close,
		logger:     logger,
	}, nil
}

// HealthProbes reports the breaker around the data server and the catalog
// store's reachability.
func (a *App) HealthProbes() []core.HealthProbe {
	return []core.HealthProbe{
		core.NewProbe("upstream", func(context.Context) error {
			if a.Clients.Base.State() == gobreaker.StateOpen {
				return errors.New("circuit breaker open")
			}
			return nil
		}),
		core.NewProbe("catalog_store", func(ctx context.Context) error {
			_, err := a.Store.Has(ctx, a.Config.Model.Product())
			return err
		}),
	}
}

// Close releases the catalog store.
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}
