// Package handlers contains the HTTP handlers of the gfsfetch API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gfsfetch/internal/core"
	"gfsfetch/internal/export"
	"gfsfetch/internal/forecasts"
	"gfsfetch/internal/types"
)

// ForecastClient is the part of forecasts.Client the handlers use.
type ForecastClient interface {
	Query(ctx context.Context, req forecasts.Request) (*forecasts.Result, error)
	Heights(ctx context.Context, cfg types.ModelConfig, at time.Time, lat, lon any) (*forecasts.HeightInterpolator, types.RunSlot, error)
}

// CatalogResolver is the part of forecasts.Catalog the handlers use.
type CatalogResolver interface {
	Resolve(ctx context.Context, cfg types.ModelConfig) (*types.CatalogRecord, error)
}

// NetCDFEncoder renders a result as a netCDF file.
type NetCDFEncoder func(res *forecasts.Result) ([]byte, error)

// ForecastHandler serves catalog lookups, forecast queries and height
// interpolation.
type ForecastHandler struct {
	client    ForecastClient
	catalog   CatalogResolver
	defaults  types.ModelConfig
	validator *core.Validator
	encode    NetCDFEncoder
	logger    *slog.Logger
}

// NewForecastHandler creates a handler. defaults is used when a request
// does not name a model.
func NewForecastHandler(
	client ForecastClient,
	catalog CatalogResolver,
	defaults types.ModelConfig,
	val *core.Validator,
	logger *slog.Logger,
) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastHandler{
		client:    client,
		catalog:   catalog,
		defaults:  defaults,
		validator: val,
		encode:    export.WriteNetCDFBytes,
		logger:    logger,
	}
}

// RegisterRoutes mounts the endpoints under the /v1 router.
func (h *ForecastHandler) RegisterRoutes(r chi.Router) {
	r.Get("/models/{config}/catalog", h.HandleGetCatalog)
	r.Get("/forecasts/query", h.HandleQuery)
	r.Post("/forecasts/height", h.HandleHeight)
}

// HandleGetCatalog handles GET /v1/models/{config}/catalog.
func (h *ForecastHandler) HandleGetCatalog(w http.ResponseWriter, r *http.Request) {
	cfg, err := types.ParseModelConfig(chi.URLParam(r, "config"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	rec, err := h.catalog.Resolve(r.Context(), cfg)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rec})
}

// QueryResponse is the JSON form of a forecast query.
type QueryResponse struct {
	Config    string                        `json:"config"`
	Run       time.Time                     `json:"run"`
	TimeIndex int                           `json:"time_index"`
	Query     string                        `json:"query"`
	Source    string                        `json:"source"`
	Coords    map[string][]float64          `json:"coords"`
	Variables map[string]QueryVariable      `json:"variables"`
	Meta      map[string]types.VariableMeta `json:"meta"`
}

// QueryVariable is one decoded array.
type QueryVariable struct {
	Dims   []string  `json:"dims"`
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// HandleQuery handles GET /v1/forecasts/query.
//
// Parameters: config (optional), vars (comma separated), time (RFC3339),
// lat and lon ("[a:b]" or a number), levels (bool), format (json|netcdf).
func (h *ForecastHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cfg, err := h.modelConfig(q.Get("config"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var vars []string
	for _, v := range strings.Split(q.Get("vars"), ",") {
		if v = strings.TrimSpace(v); v != "" {
			vars = append(vars, v)
		}
	}
	if len(vars) == 0 {
		core.Error(w, r, missingParam("vars"))
		return
	}

	at, err := parseTime(q.Get("time"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	for _, name := range []string{"lat", "lon"} {
		if q.Get(name) == "" {
			core.Error(w, r, missingParam(name))
			return
		}
	}

	levels := false
	if raw := q.Get("levels"); raw != "" {
		levels, err = strconv.ParseBool(raw)
		if err != nil {
			core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRequest,
				"levels must be true or false", nil, map[string]any{"field": "levels"}))
			return
		}
	}

	format := q.Get("format")
	if format != "" && format != "json" && format != "netcdf" {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRequest,
			"format must be json or netcdf", nil, map[string]any{"field": "format"}))
		return
	}

	res, err := h.client.Query(r.Context(), forecasts.Request{
		Config:    cfg,
		Variables: vars,
		Time:      at,
		Lat:       q.Get("lat"),
		Lon:       q.Get("lon"),
		Levels:    levels,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if format == "netcdf" {
		data, err := h.encode(res)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/x-netcdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+netCDFName(res)+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toQueryResponse(res)})
}

// HeightRequest is the body of POST /v1/forecasts/height. Point holds one
// coordinate per active axis of the fetched field; Altitude asks for the
// inverse lookup instead.
type HeightRequest struct {
	Config   string    `json:"config" validate:"omitempty,model_key"`
	Time     time.Time `json:"time" validate:"required"`
	Lat      any       `json:"lat"`
	Lon      any       `json:"lon"`
	Point    []float64 `json:"point" validate:"required_without=Altitude,max=4"`
	Altitude *float64  `json:"altitude,omitempty"`
}

// HeightResponse reports an interpolated geopotential height.
type HeightResponse struct {
	Config    string               `json:"config"`
	Run       time.Time            `json:"run"`
	TimeIndex int                  `json:"time_index"`
	Axes      []string             `json:"axes"`
	Point     []float64            `json:"point"`
	Height    float64              `json:"height"`
	Coords    map[string][]float64 `json:"coords"`
}

// HandleHeight handles POST /v1/forecasts/height.
func (h *ForecastHandler) HandleHeight(w http.ResponseWriter, r *http.Request) {
	var req HeightRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	// lat and lon may be a number or a range string, so presence is
	// checked here rather than by the validator.
	if req.Lat == nil {
		core.Error(w, r, missingField("lat"))
		return
	}
	if req.Lon == nil {
		core.Error(w, r, missingField("lon"))
		return
	}
	cfg, err := h.modelConfig(req.Config)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	interp, slot, err := h.client.Heights(r.Context(), cfg, req.Time.UTC(), req.Lat, req.Lon)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Altitude != nil {
		if _, err := interp.LevelForAltitude(*req.Altitude); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	z, err := interp.HeightAt(req.Point...)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	axes := interp.ActiveAxes()
	coords := make(map[string][]float64, len(axes))
	for _, a := range axes {
		coords[a] = interp.Coords(a)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: HeightResponse{
		Config:    cfg.Key(),
		Run:       slot.Run,
		TimeIndex: slot.TimeIndex,
		Axes:      axes,
		Point:     req.Point,
		Height:    z,
		Coords:    coords,
	}})
}

func (h *ForecastHandler) modelConfig(key string) (types.ModelConfig, error) {
	if key == "" {
		return h.defaults, nil
	}
	return types.ParseModelConfig(key)
}

func toQueryResponse(res *forecasts.Result) QueryResponse {
	out := QueryResponse{
		Config:    res.Config.Key(),
		Run:       res.Slot.Run,
		TimeIndex: res.Slot.TimeIndex,
		Query:     res.Query,
		Source:    res.URL,
		Coords:    res.Dataset.Coords,
		Variables: make(map[string]QueryVariable),
		Meta:      res.Variables,
	}
	for _, name := range res.Dataset.Names() {
		v, _ := res.Dataset.Variable(name)
		out.Variables[name] = QueryVariable{Dims: v.Dims, Shape: v.Shape, Values: v.Values}
	}
	return out
}

func netCDFName(res *forecasts.Result) string {
	return "gfs_" + res.Config.Key() + "_" + res.Slot.Date() +
		"_" + strconv.Itoa(res.Slot.Hour()) + "z_t" + strconv.Itoa(res.Slot.TimeIndex) + ".nc"
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, missingParam("time")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTime,
			"time must be an RFC3339 timestamp", err, map[string]any{"time": raw})
	}
	return t.UTC(), nil
}

func missingField(name string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
		name+" is required", nil, map[string]any{"field": name})
}

func missingParam(name string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
		name+" query parameter is required", nil, map[string]any{"field": name})
}
