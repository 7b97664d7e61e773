// Package main implements gfsq, a command line client for GFS forecasts on
// the NOMADS GrADS Data Server.
//
// Usage:
//
//	gfsq -vars tmp2m,ugrd10m -lat '[40:41]' -lon 255 -time 2026-03-10T15:00:00Z
//	gfsq -res 1p00 -step default -vars hgtprs -levels -lat 40 -lon 255 -format netcdf -out hgt.nc
//	gfsq -catalog -res 0p25 -step 1hr
//	gfsq -point 75,40 -lat '[40:40.25]' -lon 255
//
// Settings not given as flags come from the environment (or a .env file):
// NOMADS_BASE_URL, CATALOG_BACKEND, CATALOG_DIR and the rest of the
// server configuration.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gfsfetch/internal/app"
	"gfsfetch/internal/config"
	"gfsfetch/internal/export"
	"gfsfetch/internal/forecasts"
	"gfsfetch/internal/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	res     string
	step    string
	vars    string
	at      string
	lat     string
	lon     string
	levels  bool
	format  string
	out     string
	catalog bool
	point   string
	verbose bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("gfsq", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.res, "res", "", "grid resolution, e.g. 0p25 (default from GFS_RESOLUTION)")
	fs.StringVar(&o.step, "step", "", "output timestep, e.g. 1hr, or \"default\" for the 3-hourly product (default from GFS_TIMESTEP)")
	fs.StringVar(&o.vars, "vars", "", "comma separated variable names")
	fs.StringVar(&o.at, "time", "now", "forecast time (RFC3339 or \"now\")")
	fs.StringVar(&o.lat, "lat", "", "latitude: a value or [lo:hi]")
	fs.StringVar(&o.lon, "lon", "", "longitude: a value or [lo:hi]")
	fs.BoolVar(&o.levels, "levels", false, "fetch every pressure level")
	fs.StringVar(&o.format, "format", "json", "output format: json or netcdf")
	fs.StringVar(&o.out, "out", "", "output file (required for netcdf)")
	fs.BoolVar(&o.catalog, "catalog", false, "print the model catalog and exit")
	fs.StringVar(&o.point, "point", "", "interpolate geopotential height at comma separated coordinates")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: gfsq [flags]\n\n")
		fmt.Fprintf(stderr, "Query GFS forecasts from the NOMADS data server.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case o.catalog:
	case o.lat == "" || o.lon == "":
		return nil, errors.New("-lat and -lon are required")
	case o.point == "" && o.vars == "":
		return nil, errors.New("-vars or -point is required")
	}
	if o.format != "json" && o.format != "netcdf" {
		return nil, fmt.Errorf("unknown -format %q", o.format)
	}
	if o.format == "netcdf" && o.out == "" {
		return nil, errors.New("-out is required with -format netcdf")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		fmt.Fprintf(stderr, "error: loading configuration: %v\n", err)
		return 1
	}

	level := cfg.SlogLevel()
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	stack, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer stack.Close()

	if err := execute(ctx, stack, o, stdout); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", describe(err))
		return 1
	}
	return 0
}

func execute(ctx context.Context, stack *app.App, o *options, stdout io.Writer) error {
	model, err := o.model(stack.Config.Model.Product())
	if err != nil {
		return err
	}

	if o.catalog {
		rec, err := stack.Catalog.Resolve(ctx, model)
		if err != nil {
			return err
		}
		return writeJSON(stdout, rec)
	}

	at := time.Now().UTC()
	if o.at != "" && o.at != "now" {
		t, err := time.Parse(time.RFC3339, o.at)
		if err != nil {
			return types.NewAppError(types.ErrCodeValidationInvalidTime,
				fmt.Sprintf("-time %q is not RFC3339", o.at), err)
		}
		at = t.UTC()
	}

	if o.point != "" {
		coords, err := parsePoint(o.point)
		if err != nil {
			return err
		}
		interp, slot, err := stack.Client.Heights(ctx, model, at, o.lat, o.lon)
		if err != nil {
			return err
		}
		z, err := interp.HeightAt(coords...)
		if err != nil {
			return err
		}
		return writeJSON(stdout, map[string]any{
			"run":        slot.Run,
			"time_index": slot.TimeIndex,
			"axes":       interp.ActiveAxes(),
			"point":      coords,
			"height":     z,
		})
	}

	res, err := stack.Client.Query(ctx, forecasts.Request{
		Config:    model,
		Variables: strings.Split(o.vars, ","),
		Time:      at,
		Lat:       o.lat,
		Lon:       o.lon,
		Levels:    o.levels,
	})
	if err != nil {
		return err
	}

	if o.format == "netcdf" {
		return export.WriteNetCDF(o.out, res)
	}
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer f.Close()
		return writeJSON(f, res)
	}
	return writeJSON(stdout, res)
}

// model applies -res and -step over the configured default.
func (o *options) model(def types.ModelConfig) (types.ModelConfig, error) {
	m := def
	if o.res != "" {
		m.Resolution = o.res
	}
	switch o.step {
	case "":
	case "default":
		m.Timestep = ""
	default:
		m.Timestep = o.step
	}
	return m, m.Validate()
}

func parsePoint(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidRequest,
				fmt.Sprintf("-point component %q is not a number", p), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe appends AppError details, which carry the URL and indices of a
// failed request.
func describe(err error) string {
	var appErr *types.AppError
	if !errors.As(err, &appErr) || len(appErr.Details) == 0 {
		return err.Error()
	}
	details, _ := json.Marshal(appErr.Details)
	return fmt.Sprintf("%s %s", err.Error(), details)
}
