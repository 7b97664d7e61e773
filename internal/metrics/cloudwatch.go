// Package metrics publishes upstream fetch and catalog metrics to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"gfsfetch/internal/forecasts"
	"gfsfetch/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Result dimension values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	CacheHit      = "hit"
	CacheMiss     = "miss"
)

var (
	_ forecasts.FetchMetrics   = (*CloudWatchFetchMetrics)(nil)
	_ forecasts.ResolveMetrics = (*CloudWatchFetchMetrics)(nil)
)

// CloudWatchFetchMetrics emits:
//   - UpstreamFetch: Dims {Model, Endpoint, Result}, one per request
//   - UpstreamFetchLatency: Dims {Model, Endpoint}, milliseconds
//   - CatalogResolve: Dims {Model, Cache}, one per catalog lookup
//
// Publishing failures are logged and never surface to the caller.
type CloudWatchFetchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchFetchMetrics publishes to namespace, or types.MetricNamespace
// when empty.
func NewCloudWatchFetchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchFetchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchFetchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordFetch emits the fetch count and latency in a single call.
func (m *CloudWatchFetchMetrics) RecordFetch(ctx context.Context, model, endpoint string, ok bool, elapsed time.Duration) {
	result := ResultSuccess
	if !ok {
		result = ResultFailed
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricUpstreamFetch),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					dim(types.DimModel, model),
					dim(types.DimEndpoint, endpoint),
					dim(types.DimResult, result),
				},
			},
			{
				MetricName: aws.String(types.MetricUpstreamLatency),
				Value:      aws.Float64(float64(elapsed.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					dim(types.DimModel, model),
					dim(types.DimEndpoint, endpoint),
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record fetch metric",
			"error", err.Error(),
			"model", model,
			"endpoint", endpoint,
			"result", result,
		)
	}
}

// RecordResolve emits one CatalogResolve datum tagged hit or miss.
func (m *CloudWatchFetchMetrics) RecordResolve(ctx context.Context, model string, cached bool) {
	cache := CacheMiss
	if cached {
		cache = CacheHit
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricCatalogResolve),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					dim(types.DimModel, model),
					dim(types.DimCacheHint, cache),
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record resolve metric",
			"error", err.Error(),
			"model", model,
			"cache", cache,
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
