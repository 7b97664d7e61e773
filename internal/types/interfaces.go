package types

import (
	"context"
	"time"
)

// CatalogStore persists CatalogRecords keyed by ModelConfig.
// Implementations: in-memory, JSON files, S3 objects, PostgreSQL rows.
type CatalogStore interface {
	// Has reports whether a record for cfg has been stored.
	Has(ctx context.Context, cfg ModelConfig) (bool, error)

	// Get returns the stored record. A missing record is an internal
	// error; callers check Has first.
	Get(ctx context.Context, cfg ModelConfig) (*CatalogRecord, error)

	// Put stores rec under cfg and adds cfg to the store's known keys.
	// A record that already exists is left untouched.
	Put(ctx context.Context, cfg ModelConfig, rec *CatalogRecord) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }
