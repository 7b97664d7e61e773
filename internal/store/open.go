package store

import (
	"context"
	"fmt"
	"log/slog"

	"gfsfetch/internal/config"
	"gfsfetch/internal/db"
	"gfsfetch/internal/types"
)

// Opened is a catalog store plus whatever must be released with it.
type Opened struct {
	Store types.CatalogStore
	Close func() error
}

// Deps carries clients built elsewhere. S3 is required for the s3 backend.
type Deps struct {
	S3 S3API

	// newPool is swapped in tests.
	newPool func(ctx context.Context, url string) (db.DBTX, func(), error)
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.CatalogConfig, deps Deps, logger *slog.Logger) (*Opened, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		return &Opened{Store: NewMemoryStore(), Close: noop}, nil

	case config.BackendFile, "":
		fs, err := NewFileStore(cfg.Dir, cfg.Compress, logger)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: fs, Close: noop}, nil

	case config.BackendS3:
		if deps.S3 == nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "s3 catalog backend needs an S3 client", nil)
		}
		return &Opened{Store: NewS3Store(deps.S3, cfg.Bucket, cfg.Prefix, cfg.Compress, logger), Close: noop}, nil

	case config.BackendPostgres:
		newPool := deps.newPool
		if newPool == nil {
			newPool = openPool
		}
		conn, release, err := newPool(ctx, cfg.DatabaseURL.Unmask())
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to connect to catalog database", err)
		}
		repo := db.NewCatalogRepository(conn)
		if err := repo.EnsureSchema(ctx); err != nil {
			release()
			return nil, err
		}
		return &Opened{Store: repo, Close: func() error { release(); return nil }}, nil

	default:
		return nil, types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("unknown catalog backend %q", cfg.Backend), nil)
	}
}

func openPool(ctx context.Context, url string) (db.DBTX, func(), error) {
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}
