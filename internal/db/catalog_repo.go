package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gfsfetch/internal/types"
)

// CatalogSchema creates the catalog table. Records are immutable once
// written, so there is no updated_at column.
const CatalogSchema = `CREATE TABLE IF NOT EXISTS catalog_records (
	config_key TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// CatalogRepository stores CatalogRecords as JSONB rows keyed by
// ModelConfig.Key. It implements types.CatalogStore.
type CatalogRepository struct {
	db DBTX
}

// NewCatalogRepository creates a repository backed by the given connection
// (pool or transaction).
func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// EnsureSchema creates the catalog table when it does not exist.
func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, CatalogSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to create catalog table", err)
	}
	return nil
}

// Has reports whether a row exists for cfg.
func (r *CatalogRepository) Has(ctx context.Context, cfg types.ModelConfig) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM catalog_records WHERE config_key = $1)`,
		cfg.Key(),
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalStore, "failed to check catalog record", err)
	}
	return exists, nil
}

// Get loads and decodes the record for cfg.
func (r *CatalogRepository) Get(ctx context.Context, cfg types.ModelConfig) (*types.CatalogRecord, error) {
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT record FROM catalog_records WHERE config_key = $1`,
		cfg.Key(),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalStore,
				"catalog record not found", err, map[string]any{"config": cfg.Key()})
		}
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to load catalog record", err)
	}

	var rec types.CatalogRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("catalog record for %s is corrupt", cfg.Key()), err)
	}
	return &rec, nil
}

// Put inserts rec. An existing row wins: concurrent writers resolve the
// same config to the same record, so the loser's insert is dropped.
func (r *CatalogRepository) Put(ctx context.Context, cfg types.ModelConfig, rec *types.CatalogRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to encode catalog record", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO catalog_records (config_key, record)
		 VALUES ($1, $2)
		 ON CONFLICT (config_key) DO NOTHING`,
		cfg.Key(), raw,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to save catalog record", err)
	}
	return nil
}

// Keys lists the stored config keys in creation order.
func (r *CatalogRepository) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT config_key FROM catalog_records ORDER BY created_at, config_key`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to list catalog records", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to scan catalog key", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to iterate catalog keys", err)
	}
	return keys, nil
}
