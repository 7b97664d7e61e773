// Package store holds CatalogStore implementations: in-memory, a directory
// of JSON files, and an S3 prefix. The PostgreSQL store lives in package db.
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"gfsfetch/internal/types"
)

const (
	recordSuffix     = ".json"
	compressedSuffix = ".json.zst"
)

// codec serialises records as JSON, optionally zstd compressed.
type codec struct {
	compress    bool
	encoder     *zstd.Encoder
	decoderPool sync.Pool
}

func newCodec(compress bool) *codec {
	c := &codec{
		compress: compress,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					// This should never fail with nil input and default options.
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
		}
		c.encoder = enc
	}
	return c
}

// suffix is the file or object name suffix records are written with.
func (c *codec) suffix() string {
	if c.compress {
		return compressedSuffix
	}
	return recordSuffix
}

func (c *codec) encode(rec *types.CatalogRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog record: %w", err)
	}
	if !c.compress {
		return data, nil
	}
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *codec) decode(data []byte, compressed bool) (*types.CatalogRecord, error) {
	if compressed {
		d := c.decoderPool.Get().(*zstd.Decoder)
		defer c.decoderPool.Put(d)
		raw, err := d.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		data = raw
	}
	var rec types.CatalogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal catalog record: %w", err)
	}
	return &rec, nil
}

func notFound(cfg types.ModelConfig) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalStore,
		"no catalog record stored for "+cfg.Key(), nil, map[string]any{"config": cfg.Key()})
}
