package forecasts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"gfsfetch/internal/types"
)

// Catalog discovers and caches the metadata of GFS products. A record is
// fetched once per ModelConfig and then served from the store forever.
type Catalog struct {
	store     types.CatalogStore
	endpoints Endpoints
	clock     types.Clock
	logger    *slog.Logger
	fetch     *fetcher
	validate  *validator.Validate
	group     singleflight.Group
	resolves  ResolveMetrics
}

// ResolveMetrics is implemented by FetchMetrics that also count catalog
// lookups by whether the store already held the record.
type ResolveMetrics interface {
	RecordResolve(ctx context.Context, model string, cached bool)
}

// CatalogOption is a functional option for configuring a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogClock overrides the clock used to pick the reference run.
func WithCatalogClock(c types.Clock) CatalogOption {
	return func(cat *Catalog) { cat.clock = c }
}

// WithCatalogEndpoints overrides the DODS root.
func WithCatalogEndpoints(e Endpoints) CatalogOption {
	return func(cat *Catalog) { cat.endpoints = e }
}

// WithCatalogLogger sets the logger.
func WithCatalogLogger(l *slog.Logger) CatalogOption {
	return func(cat *Catalog) {
		if l != nil {
			cat.logger = l
		}
	}
}

// WithCatalogMetrics records every metadata fetch, and every resolve when m
// implements ResolveMetrics.
func WithCatalogMetrics(m FetchMetrics) CatalogOption {
	return func(cat *Catalog) {
		if m == nil {
			return
		}
		cat.fetch.metrics = m
		if rm, ok := m.(ResolveMetrics); ok {
			cat.resolves = rm
		}
	}
}

// NewCatalog creates a Catalog over store, fetching through transport.
func NewCatalog(store types.CatalogStore, transport Transport, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		store:     store,
		endpoints: NewEndpoints(""),
		clock:     types.RealClock{},
		logger:    slog.Default(),
		fetch:     &fetcher{transport: transport, metrics: noopMetrics{}},
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fetch.logger = c.logger
	c.fetch.now = c.clock.Now
	return c
}

// ReferenceRun is the run whose metadata describes a product: today's 00z
// run, or yesterday's before 06z when today's is not yet published.
func ReferenceRun(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if now.Hour() < 6 {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// Resolve returns the CatalogRecord for cfg, fetching and storing it on
// first use. Concurrent calls for one key share a single fetch.
func (c *Catalog) Resolve(ctx context.Context, cfg types.ModelConfig) (*types.CatalogRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v, err, _ := c.group.Do(cfg.Key(), func() (any, error) {
		return c.resolve(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.CatalogRecord), nil
}

func (c *Catalog) resolve(ctx context.Context, cfg types.ModelConfig) (*types.CatalogRecord, error) {
	cached, err := c.store.Has(ctx, cfg)
	if err != nil {
		return nil, storeError("check", cfg, err)
	}
	if c.resolves != nil {
		c.resolves.RecordResolve(ctx, cfg.Key(), cached)
	}
	if cached {
		rec, err := c.store.Get(ctx, cfg)
		if err != nil {
			return nil, storeError("read", cfg, err)
		}
		return rec, nil
	}

	ref := ReferenceRun(c.clock.Now())
	c.logger.InfoContext(ctx, "fetching catalog metadata",
		"config", cfg.Key(),
		"reference_run", ref.Format(time.RFC3339),
	)

	dasBody, err := c.fetch.get(ctx, cfg, types.EndpointDAS, c.endpoints.DAS(cfg, ref), nil)
	if err != nil {
		return nil, err
	}
	das, err := ParseDAS(dasBody)
	if err != nil {
		return nil, malformedError(cfg, err)
	}
	for _, issue := range das.Issues {
		c.logger.WarnContext(ctx, "das statement skipped",
			"config", cfg.Key(),
			"line", issue.Line,
			"text", issue.Text,
			"reason", issue.Reason,
		)
	}

	ddsBody, err := c.fetch.get(ctx, cfg, types.EndpointDDS, c.endpoints.DDS(cfg, ref), nil)
	if err != nil {
		return nil, err
	}
	decls, err := ParseDDS(ddsBody)
	if err != nil {
		return nil, malformedError(cfg, err)
	}

	rec, err := BuildRecord(das, decls)
	if err != nil {
		return nil, malformedError(cfg, err)
	}
	if err := c.check(rec); err != nil {
		return nil, malformedError(cfg, err)
	}
	rec.FetchedAt = c.clock.Now().UTC()

	if err := c.store.Put(ctx, cfg, rec); err != nil {
		return nil, storeError("write", cfg, err)
	}
	// Put keeps an earlier writer's record; answer with whatever is stored.
	stored, err := c.store.Get(ctx, cfg)
	if err != nil {
		return nil, storeError("read", cfg, err)
	}
	if !stored.FetchedAt.Equal(rec.FetchedAt) {
		c.logger.InfoContext(ctx, "catalog already stored by another writer",
			"config", cfg.Key(),
			"stored_at", stored.FetchedAt.Format(time.RFC3339),
		)
		return stored, nil
	}
	c.logger.InfoContext(ctx, "catalog cached",
		"config", cfg.Key(),
		"variables", len(stored.Variables),
		"run_count", stored.Time.RunCount,
		"run_step_hours", stored.Time.RunStepHours,
	)
	return stored, nil
}

// recordCheck is the minimum a record needs for indexing and run selection.
type recordCheck struct {
	Time      types.TimeMeta
	Lat       types.AxisMeta
	Lon       types.AxisMeta
	LatRes    float64 `validate:"gt=0"`
	LonRes    float64 `validate:"gt=0"`
	Variables int     `validate:"gt=0"`
}

func (c *Catalog) check(rec *types.CatalogRecord) error {
	lat, hasLat := rec.Coords[types.AxisLat]
	lon, hasLon := rec.Coords[types.AxisLon]
	if !hasLat || !hasLon {
		return errors.New("metadata lacks lat or lon axis")
	}
	return c.validate.Struct(recordCheck{
		Time:      rec.Time,
		Lat:       lat,
		Lon:       lon,
		LatRes:    lat.Resolution,
		LonRes:    lon.Resolution,
		Variables: len(rec.Variables),
	})
}

// BuildRecord merges a parsed DAS and the DDS array declarations into a
// CatalogRecord. Variables without a declaration are not level dependent.
func BuildRecord(das *DAS, decls []ArrayDecl) (*types.CatalogRecord, error) {
	rec := &types.CatalogRecord{
		Coords:    make(map[string]types.AxisMeta),
		Variables: make(map[string]types.VariableMeta),
	}

	for _, name := range das.Order {
		ent := das.Entities[name]
		switch {
		case name == types.AxisTime:
			tm, err := timeMeta(ent)
			if err != nil {
				return nil, err
			}
			rec.Time = tm
		case name == types.AxisLat || name == types.AxisLon || name == types.AxisLev:
			rec.Coords[name] = axisMeta(ent)
		case strings.HasPrefix(name, "NC_") || strings.HasPrefix(name, "DODS_"):
			// Global and server containers.
		default:
			rec.Variables[name] = variableMeta(ent)
		}
	}

	for _, d := range decls {
		v, ok := rec.Variables[d.Name]
		if !ok {
			continue
		}
		v.LevelDependent = d.HasDim(types.AxisLev)
		rec.Variables[d.Name] = v
	}
	return rec, nil
}

func timeMeta(ent *Entity) (types.TimeMeta, error) {
	var tm types.TimeMeta
	if a, ok := ent.Attrs["grads_size"]; ok {
		n, ok := a.textInt()
		if !ok {
			return tm, fmt.Errorf("time grads_size %q is not an integer (line %d)", a.Text, a.Line)
		}
		tm.RunCount = n
	}
	if a, ok := ent.Attrs["grads_step"]; ok {
		h, err := parseStepHours(a.Text)
		if err != nil {
			return tm, fmt.Errorf("time grads_step (line %d): %w", a.Line, err)
		}
		tm.RunStepHours = h
	}
	return tm, nil
}

// parseStepHours reads a GrADS time increment such as "3hr" or "1dy".
func parseStepHours(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("step %q has no count", s)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, err
	}
	switch s[i:] {
	case "hr":
		return n, nil
	case "dy":
		return n * 24, nil
	default:
		return 0, fmt.Errorf("step %q: unsupported unit %q", s, s[i:])
	}
}

func axisMeta(ent *Entity) types.AxisMeta {
	var a types.AxisMeta
	if v, ok := ent.Attrs["minimum"]; ok && v.Numeric {
		a.Minimum = v.Number
	}
	if v, ok := ent.Attrs["maximum"]; ok && v.Numeric {
		a.Maximum = v.Number
	}
	if v, ok := ent.Attrs["resolution"]; ok && v.Numeric {
		a.Resolution = v.Number
	}
	if v, ok := ent.Attrs["grads_size"]; ok {
		if n, ok := v.textInt(); ok {
			a.GridSize = n
		}
	}
	return a
}

func variableMeta(ent *Entity) types.VariableMeta {
	vm := types.VariableMeta{Name: ent.Name}
	if v, ok := ent.Attrs["_FillValue"]; ok && v.Numeric {
		f := v.Number
		vm.FillValue = &f
	}
	if v, ok := ent.Attrs["missing_value"]; ok && v.Numeric {
		m := v.Number
		vm.MissingValue = &m
	}
	if v, ok := ent.Attrs["long_name"]; ok && !v.Numeric {
		vm.LongName = v.Text
	}
	return vm
}

func malformedError(cfg types.ModelConfig, err error) error {
	details := map[string]any{"config": cfg.Key()}
	var pe *ParseError
	if errors.As(err, &pe) {
		details["format"] = pe.Format
		details["line"] = pe.Line
		details["text"] = pe.Text
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamMalformed,
		"forecast metadata could not be parsed", err, details)
}

func storeError(op string, cfg types.ModelConfig, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppErrorWithDetails(types.ErrCodeInternalStore,
		fmt.Sprintf("catalog store %s failed", op), err, map[string]any{"config": cfg.Key()})
}
