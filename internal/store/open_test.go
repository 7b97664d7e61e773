package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gfsfetch/internal/config"
	"gfsfetch/internal/db"
	"gfsfetch/internal/types"
)

// schemaOnlyDB accepts Exec and fails everything else.
type schemaOnlyDB struct {
	execs   []string
	execErr error
}

func (d *schemaOnlyDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, sql)
	return pgconn.CommandTag{}, d.execErr
}

func (d *schemaOnlyDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (d *schemaOnlyDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()

	opened, err := Open(ctx, config.CatalogConfig{Backend: config.BackendMemory}, Deps{}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, opened.Store)
	assert.NoError(t, opened.Close())

	dir := t.TempDir()
	opened, err = Open(ctx, config.CatalogConfig{Backend: config.BackendFile, Dir: dir}, Deps{}, testLogger())
	require.NoError(t, err)
	fs, ok := opened.Store.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, dir, fs.Dir())

	opened, err = Open(ctx, config.CatalogConfig{Backend: config.BackendS3, Bucket: "catalogs", Prefix: "gfs"},
		Deps{S3: newFakeS3()}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, opened.Store)
}

func TestOpen_Postgres(t *testing.T) {
	conn := &schemaOnlyDB{}
	released := false
	deps := Deps{newPool: func(_ context.Context, url string) (db.DBTX, func(), error) {
		assert.Equal(t, "postgres://catalog@localhost/gfs", url)
		return conn, func() { released = true }, nil
	}}

	cfg := config.CatalogConfig{
		Backend:     config.BackendPostgres,
		DatabaseURL: types.SecretString("postgres://catalog@localhost/gfs"),
	}
	opened, err := Open(context.Background(), cfg, deps, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &db.CatalogRepository{}, opened.Store)
	assert.Equal(t, []string{db.CatalogSchema}, conn.execs)

	require.NoError(t, opened.Close())
	assert.True(t, released)
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.CatalogConfig
		deps Deps
	}{
		{
			name: "s3 without client",
			cfg:  config.CatalogConfig{Backend: config.BackendS3, Bucket: "catalogs"},
		},
		{
			name: "unknown backend",
			cfg:  config.CatalogConfig{Backend: "redis"},
		},
		{
			name: "database unreachable",
			cfg:  config.CatalogConfig{Backend: config.BackendPostgres},
			deps: Deps{newPool: func(context.Context, string) (db.DBTX, func(), error) {
				return nil, nil, errors.New("connection refused")
			}},
		},
		{
			name: "schema creation fails",
			cfg:  config.CatalogConfig{Backend: config.BackendPostgres},
			deps: Deps{newPool: func(context.Context, string) (db.DBTX, func(), error) {
				return &schemaOnlyDB{execErr: errors.New("permission denied")}, func() {}, nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg, tt.deps, testLogger())
			require.Error(t, err)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeInternalStore, appErr.Code)
		})
	}
}
