package store

import (
	"context"
	"sync"

	"gfsfetch/internal/types"
)

// MemoryStore keeps records for the life of the process. Records are copied
// on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*types.CatalogRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*types.CatalogRecord)}
}

func (s *MemoryStore) Has(_ context.Context, cfg types.ModelConfig) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[cfg.Key()]
	return ok, nil
}

func (s *MemoryStore) Get(_ context.Context, cfg types.ModelConfig) (*types.CatalogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[cfg.Key()]
	if !ok {
		return nil, notFound(cfg)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, cfg types.ModelConfig, rec *types.CatalogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[cfg.Key()]; !ok {
		s.records[cfg.Key()] = rec.Clone()
	}
	return nil
}

// Keys returns the stored config keys in no particular order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}
