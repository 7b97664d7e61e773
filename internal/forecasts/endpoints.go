// Package forecasts resolves GFS forecast requests against the NOMADS GrADS
// Data Server: it discovers and caches per-product metadata, maps requested
// times onto forecast runs, turns coordinates into grid indices, and builds
// DODS ASCII queries.
//
// Dataset paths follow the server's layout:
//
//	{base}/gfs_{key}/gfs{YYYYMMDD}/gfs_{key}_{HH}z.{das|dds|ascii?query}
//
// where key is the ModelConfig key, e.g. "0p25" or "0p25_1hr".
package forecasts

import (
	"fmt"
	"strings"
	"time"

	"gfsfetch/internal/types"
)

// DefaultBaseURL is the public NOMADS DODS root.
const DefaultBaseURL = "https://nomads.ncep.noaa.gov/dods"

// Endpoints builds dataset URLs below a DODS root.
type Endpoints struct {
	BaseURL string
}

// NewEndpoints trims any trailing slash; an empty base selects DefaultBaseURL.
func NewEndpoints(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return Endpoints{BaseURL: base}
}

// Dataset returns the dataset URL without suffix for a run.
func (e Endpoints) Dataset(cfg types.ModelConfig, run time.Time) string {
	key := cfg.Key()
	run = run.UTC()
	return fmt.Sprintf("%s/gfs_%s/gfs%s/gfs_%s_%02dz",
		e.BaseURL, key, run.Format("20060102"), key, run.Hour())
}

// DAS returns the attribute description URL.
func (e Endpoints) DAS(cfg types.ModelConfig, run time.Time) string {
	return e.Dataset(cfg, run) + "." + types.EndpointDAS
}

// DDS returns the array declaration URL.
func (e Endpoints) DDS(cfg types.ModelConfig, run time.Time) string {
	return e.Dataset(cfg, run) + "." + types.EndpointDDS
}

// ASCII returns the data URL for a constraint expression. The expression is
// appended verbatim; the server expects raw brackets and commas.
func (e Endpoints) ASCII(cfg types.ModelConfig, run time.Time, query string) string {
	return e.Dataset(cfg, run) + "." + types.EndpointASCII + "?" + query
}
