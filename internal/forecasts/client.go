package forecasts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gfsfetch/internal/decode"
	"gfsfetch/internal/types"
)

// Decoder turns an ASCII response body into named arrays.
type Decoder interface {
	Decode(body string) (*decode.Dataset, error)
}

// Request asks for variables at one time over a lat/lon window.
//
// Lat and Lon accept "[a:b]" strings, numeric strings, or Go numbers; see
// ParseExpression. Levels requests every pressure level for level-dependent
// variables. Heights also fetches geopotential height for the same window
// and returns an interpolator over it.
type Request struct {
	Config    types.ModelConfig
	Variables []string
	Time      time.Time
	Lat       any
	Lon       any
	Levels    bool
	Heights   bool
}

// Result is a decoded forecast response.
type Result struct {
	Config    types.ModelConfig             `json:"config"`
	Slot      types.RunSlot                 `json:"slot"`
	Query     string                        `json:"query"`
	URL       string                        `json:"url"`
	Dataset   *decode.Dataset               `json:"dataset"`
	Variables map[string]types.VariableMeta `json:"variables"`
	Heights   *HeightInterpolator           `json:"-"`
}

// Client runs the full request path: catalog, run selection, indexing,
// query building, fetch and decode.
type Client struct {
	catalog   *Catalog
	endpoints Endpoints
	decoder   Decoder
	fetch     *fetcher
	clock     types.Clock
	logger    *slog.Logger
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithClock overrides the clock used for run selection.
func WithClock(c types.Clock) ClientOption {
	return func(cl *Client) { cl.clock = c }
}

// WithEndpoints overrides the DODS root.
func WithEndpoints(e Endpoints) ClientOption {
	return func(cl *Client) { cl.endpoints = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithMetrics records every data fetch.
func WithMetrics(m FetchMetrics) ClientOption {
	return func(cl *Client) {
		if m != nil {
			cl.fetch.metrics = m
		}
	}
}

// NewClient wires a Client. The catalog and the client normally share one
// Transport.
func NewClient(catalog *Catalog, transport Transport, decoder Decoder, opts ...ClientOption) *Client {
	c := &Client{
		catalog:   catalog,
		endpoints: NewEndpoints(""),
		decoder:   decoder,
		fetch:     &fetcher{transport: transport, metrics: noopMetrics{}},
		clock:     types.RealClock{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fetch.logger = c.logger
	c.fetch.now = c.clock.Now
	return c
}

// Catalog returns the metadata catalog behind the client.
func (c *Client) Catalog() *Catalog { return c.catalog }

// Query fetches the requested variables.
func (c *Client) Query(ctx context.Context, req Request) (*Result, error) {
	rec, err := c.catalog.Resolve(ctx, req.Config)
	if err != nil {
		return nil, err
	}

	slot, err := ResolveRun(c.clock.Now(), rec.Time, req.Time)
	if err != nil {
		return nil, err
	}

	latExpr, lonExpr, err := c.expressions(rec, req.Lat, req.Lon)
	if err != nil {
		return nil, err
	}

	idx := types.QueryIndex{TimeIndex: slot.TimeIndex, Lat: latExpr, Lon: lonExpr}
	if req.Levels {
		lev, ok := rec.Coords[types.AxisLev]
		if !ok {
			return nil, types.NewAppError(types.ErrCodeValidationMissingLevels,
				fmt.Sprintf("model %s has no pressure levels", req.Config.Key()), nil)
		}
		r := FullLevelRange(lev)
		idx.Levels = &r
	}

	query, err := BuildQuery(rec, req.Variables, idx)
	if err != nil {
		return nil, err
	}

	url := c.endpoints.ASCII(req.Config, slot.Run, query)
	c.logger.InfoContext(ctx, "querying forecast",
		"config", req.Config.Key(),
		"run", slot.Run.Format(time.RFC3339),
		"time_index", slot.TimeIndex,
		"query", query,
	)

	body, err := c.fetch.get(ctx, req.Config, types.EndpointASCII, url, map[string]any{
		"forecast_date": slot.Date(),
		"forecast_hour": slot.Hour(),
		"time_index":    slot.TimeIndex,
	})
	if err != nil {
		return nil, err
	}
	ds, err := c.decoder.Decode(body)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Config:    req.Config,
		Slot:      slot,
		Query:     query,
		URL:       url,
		Dataset:   ds,
		Variables: make(map[string]types.VariableMeta, len(req.Variables)),
	}
	for _, name := range req.Variables {
		res.Variables[name] = rec.Variables[name]
	}

	if req.Heights {
		h, err := c.BuildHeightInterpolator(ctx, rec, req.Config, slot, latExpr, lonExpr)
		if err != nil {
			return nil, err
		}
		res.Heights = h
	}
	return res, nil
}

// Heights resolves a request time and window and returns the height
// interpolator for it, with the selected run.
func (c *Client) Heights(ctx context.Context, cfg types.ModelConfig, at time.Time, lat, lon any) (*HeightInterpolator, types.RunSlot, error) {
	rec, err := c.catalog.Resolve(ctx, cfg)
	if err != nil {
		return nil, types.RunSlot{}, err
	}
	slot, err := ResolveRun(c.clock.Now(), rec.Time, at)
	if err != nil {
		return nil, types.RunSlot{}, err
	}
	latExpr, lonExpr, err := c.expressions(rec, lat, lon)
	if err != nil {
		return nil, types.RunSlot{}, err
	}
	h, err := c.BuildHeightInterpolator(ctx, rec, cfg, slot, latExpr, lonExpr)
	if err != nil {
		return nil, types.RunSlot{}, err
	}
	return h, slot, nil
}

// BuildHeightInterpolator fetches hgtprs over every pressure level at the
// slot's time and the given lat/lon expressions.
func (c *Client) BuildHeightInterpolator(
	ctx context.Context,
	rec *types.CatalogRecord,
	cfg types.ModelConfig,
	slot types.RunSlot,
	latExpr, lonExpr string,
) (*HeightInterpolator, error) {
	lev, ok := rec.Coords[types.AxisLev]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationMissingLevels,
			fmt.Sprintf("model %s has no pressure levels", cfg.Key()), nil)
	}
	levels := FullLevelRange(lev)
	query, err := BuildQuery(rec, []string{HeightVariable}, types.QueryIndex{
		TimeIndex: slot.TimeIndex,
		Lat:       latExpr,
		Lon:       lonExpr,
		Levels:    &levels,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.fetch.get(ctx, cfg, types.EndpointASCII, c.endpoints.ASCII(cfg, slot.Run, query), map[string]any{
		"forecast_date": slot.Date(),
		"forecast_hour": slot.Hour(),
		"time_index":    slot.TimeIndex,
		"lat":           latExpr,
		"lon":           lonExpr,
	})
	if err != nil {
		return nil, err
	}

	ds, err := c.decoder.Decode(body)
	if err != nil {
		return nil, err
	}
	return NewHeightInterpolator(ds)
}

func (c *Client) expressions(rec *types.CatalogRecord, lat, lon any) (string, string, error) {
	latExpr, err := ParseExpression(rec.Coords[types.AxisLat], lat)
	if err != nil {
		return "", "", withAxis(err, types.AxisLat)
	}
	lonExpr, err := ParseExpression(rec.Coords[types.AxisLon], lon)
	if err != nil {
		return "", "", withAxis(err, types.AxisLon)
	}
	return latExpr, lonExpr, nil
}

func withAxis(err error, axis string) error {
	if appErr, ok := err.(*types.AppError); ok {
		return appErr.WithDetails(map[string]any{"axis": axis})
	}
	return err
}
