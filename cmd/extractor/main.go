// Package main is the entry point for the extractor Lambda function.
//
// Each invocation carries one ExtractRequest and returns the decoded
// forecast. The catalog store and data server client are built once on cold
// start and reused across invocations.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"gfsfetch/internal/app"
	"gfsfetch/internal/config"
	"gfsfetch/internal/forecasts"
	"gfsfetch/internal/types"
)

// ExtractRequest is the invocation payload.
type ExtractRequest struct {
	// Config is a model key such as "0p25_1hr"; empty uses the configured
	// default.
	Config    string    `json:"config"`
	Variables []string  `json:"variables"`
	Time      time.Time `json:"time"`
	Lat       any       `json:"lat"`
	Lon       any       `json:"lon"`
	Levels    bool      `json:"levels"`

	// Point, when set, also interpolates geopotential height there.
	Point []float64 `json:"point,omitempty"`
}

// ExtractResponse wraps the forecast result.
type ExtractResponse struct {
	*forecasts.Result
	Height *float64 `json:"height,omitempty"`
}

// querier is the part of forecasts.Client the handler needs.
type querier interface {
	Query(ctx context.Context, req forecasts.Request) (*forecasts.Result, error)
}

type handlerFunc func(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)

func newHandler(client querier, defaults types.ModelConfig, logger *slog.Logger) handlerFunc {
	return func(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
		cfg := defaults
		if req.Config != "" {
			var err error
			if cfg, err = types.ParseModelConfig(req.Config); err != nil {
				return nil, err
			}
		}
		if len(req.Variables) == 0 && len(req.Point) == 0 {
			return nil, types.NewAppError(types.ErrCodeValidationMissingField, "variables is required", nil)
		}
		if req.Time.IsZero() {
			return nil, types.NewAppError(types.ErrCodeValidationMissingField, "time is required", nil)
		}
		if req.Lat == nil || req.Lon == nil {
			return nil, types.NewAppError(types.ErrCodeValidationMissingField, "lat and lon are required", nil)
		}

		vars := req.Variables
		if len(vars) == 0 {
			vars = []string{forecasts.HeightVariable}
		}
		res, err := client.Query(ctx, forecasts.Request{
			Config:    cfg,
			Variables: vars,
			Time:      req.Time.UTC(),
			Lat:       req.Lat,
			Lon:       req.Lon,
			Levels:    req.Levels,
			Heights:   len(req.Point) > 0,
		})
		if err != nil {
			logger.ErrorContext(ctx, "extraction failed",
				"config", cfg.Key(),
				"variables", strings.Join(vars, ","),
				"error", err,
			)
			return nil, err
		}

		out := &ExtractResponse{Result: res}
		if len(req.Point) > 0 && res.Heights != nil {
			z, err := res.Heights.HeightAt(req.Point...)
			if err != nil {
				return nil, err
			}
			out.Height = &z
		}

		logger.InfoContext(ctx, "extraction complete",
			"config", cfg.Key(),
			"run", res.Slot.Run.Format(time.RFC3339),
			"time_index", res.Slot.TimeIndex,
			"query", res.Query,
		)
		return out, nil
	}
}

func main() {
	if err := config.ResolveSecrets(config.NewSecretProvider(nil)); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: resolving secrets: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With("service", "extractor")
	logger.Info("extractor initializing (cold start)", "version", cfg.Build.Version)

	stack, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build forecast stack", "error", err)
		os.Exit(1)
	}

	lambda.Start(newHandler(stack.Client, cfg.Model.Product(), logger))
}
