package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gfsfetch/internal/types"
)

const (
	indexFile = "index.json"
	lockFile  = ".catalog.lock"
)

// index is the on-disk list of stored config keys.
type index struct {
	SavedConfigs []string `json:"saved_configs"`
}

// FileStore keeps one record file per config plus index.json in a
// directory. Writes go to a temporary file and are renamed into place, and
// Put holds an exclusive lock on the directory so processes sharing it do
// not interleave.
type FileStore struct {
	dir    string
	codec  *codec
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates dir if needed. With compress, records are written as
// zstd-compressed JSON; both forms are readable either way.
func NewFileStore(dir string, compress bool, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("failed to create catalog directory %s", dir), err)
	}
	return &FileStore{dir: dir, codec: newCodec(compress), logger: logger}, nil
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Has(_ context.Context, cfg types.ModelConfig) (bool, error) {
	idx, err := s.readIndex()
	if err != nil {
		return false, err
	}
	return slices.Contains(idx.SavedConfigs, cfg.Key()), nil
}

func (s *FileStore) Get(_ context.Context, cfg types.ModelConfig) (*types.CatalogRecord, error) {
	for _, suffix := range []string{compressedSuffix, recordSuffix} {
		data, err := os.ReadFile(s.recordPath(cfg, suffix))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to read catalog record", err)
		}
		rec, err := s.codec.decode(data, suffix == compressedSuffix)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalStore,
				"stored catalog record is corrupt", err, map[string]any{"config": cfg.Key()})
		}
		return rec, nil
	}
	return nil, notFound(cfg)
}

func (s *FileStore) Put(_ context.Context, cfg types.ModelConfig, rec *types.CatalogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := lockDir(filepath.Join(s.dir, lockFile))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to lock catalog directory", err)
	}
	defer unlock()

	// Re-read under the lock: another process may have stored it meanwhile.
	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	if slices.Contains(idx.SavedConfigs, cfg.Key()) {
		s.logger.Debug("catalog record already stored", "config", cfg.Key())
		return nil
	}

	data, err := s.codec.encode(rec)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to encode catalog record", err)
	}
	if err := writeAtomic(s.recordPath(cfg, s.codec.suffix()), data); err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to write catalog record", err)
	}

	idx.SavedConfigs = append(idx.SavedConfigs, cfg.Key())
	idxData, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to encode catalog index", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, indexFile), idxData); err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to write catalog index", err)
	}

	s.logger.Info("catalog record stored", "config", cfg.Key(), "dir", s.dir)
	return nil
}

func (s *FileStore) readIndex() (index, error) {
	var idx index
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return idx, types.NewAppError(types.ErrCodeInternalStore, "failed to read catalog index", err)
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return idx, types.NewAppError(types.ErrCodeInternalStore, "catalog index is corrupt", err)
	}
	return idx, nil
}

func (s *FileStore) recordPath(cfg types.ModelConfig, suffix string) string {
	return filepath.Join(s.dir, cfg.Key()+suffix)
}

// writeAtomic writes data to a temporary file in the target's directory and
// renames it over path, so readers see either the old or the new content.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
