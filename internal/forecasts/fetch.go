package forecasts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gfsfetch/internal/types"
)

// Transport issues a single GET and returns the status code and body. It
// must not retry.
type Transport interface {
	Get(ctx context.Context, url string) (int, string, error)
}

// FetchMetrics records the outcome of each upstream request.
type FetchMetrics interface {
	RecordFetch(ctx context.Context, model, endpoint string, ok bool, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordFetch(context.Context, string, string, bool, time.Duration) {}

// fetcher wraps a Transport with logging, metrics and status mapping.
type fetcher struct {
	transport Transport
	metrics   FetchMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// get fetches url and returns its body. Transport failures and non-2xx
// statuses are service errors; details are attached to the error so the
// failing request can be reproduced.
func (f *fetcher) get(ctx context.Context, cfg types.ModelConfig, endpoint, url string, details map[string]any) (string, error) {
	start := f.now()
	status, body, err := f.transport.Get(ctx, url)
	elapsed := f.now().Sub(start)

	ok := err == nil && status >= 200 && status < 300
	f.metrics.RecordFetch(ctx, cfg.Key(), endpoint, ok, elapsed)

	merged := map[string]any{"url": url, "endpoint": endpoint}
	for k, v := range details {
		merged[k] = v
	}

	if err != nil {
		f.logger.WarnContext(ctx, "upstream request failed",
			"config", cfg.Key(),
			"endpoint", endpoint,
			"url", url,
			"error", err,
		)
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return "", appErr.WithDetails(merged)
		}
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
			"upstream request failed", err, merged)
	}

	if !ok {
		f.logger.WarnContext(ctx, "upstream returned non-success status",
			"config", cfg.Key(),
			"endpoint", endpoint,
			"url", url,
			"status", status,
		)
		merged["status"] = status
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamForecast,
			fmt.Sprintf("forecast server returned status %d for %s request", status, endpoint), nil, merged)
	}

	f.logger.DebugContext(ctx, "upstream request complete",
		"config", cfg.Key(),
		"endpoint", endpoint,
		"status", status,
		"bytes", len(body),
		"duration", elapsed,
	)
	return body, nil
}
