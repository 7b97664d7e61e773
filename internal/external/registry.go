package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"gfsfetch/internal/config"
)

// ClientRegistry holds the outbound clients a binary needs. AWS clients are
// only built when the configuration asks for them.
type ClientRegistry struct {
	Base *BaseClient
	DODS *DODSClient

	// S3 is set when the catalog lives in a bucket.
	S3 *s3.Client
	// CloudWatch is set when metrics are enabled.
	CloudWatch *cloudwatch.Client
}

// RegistryOption is a functional option for configuring a ClientRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	httpClient *http.Client
	awsCfg     *aws.Config
}

// WithHTTPClient replaces the HTTP client used for the data server.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(rc *registryConfig) { rc.httpClient = c }
}

// WithAWSConfig skips loading the default AWS configuration.
func WithAWSConfig(cfg aws.Config) RegistryOption {
	return func(rc *registryConfig) { rc.awsCfg = &cfg }
}

// NewClientRegistry builds the data server client from cfg.Upstream and,
// when needed, the S3 and CloudWatch clients.
func NewClientRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	httpClient := rc.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Upstream.Timeout}
	}

	settings := DefaultBreakerSettings()
	if cfg.Upstream.BreakerFailures > 0 {
		settings.ConsecutiveFailures = cfg.Upstream.BreakerFailures
	}
	if cfg.Upstream.BreakerOpenTimeout > 0 {
		settings.OpenTimeout = cfg.Upstream.BreakerOpenTimeout
	}

	base := NewBaseClient(httpClient, "nomads", settings, cfg.Upstream.UserAgent)
	reg := &ClientRegistry{
		Base: base,
		DODS: NewDODSClient(base, cfg.Upstream.MaxBodyBytes),
	}

	needS3 := cfg.Catalog.Backend == config.BackendS3
	needCW := cfg.Observability.EnableMetrics
	if !needS3 && !needCW {
		return reg, nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg, rc)
	if err != nil {
		return nil, err
	}
	endpoint := cfg.AWS.EndpointURL

	if needS3 {
		reg.S3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		logger.Info("s3 client initialized", "bucket", cfg.Catalog.Bucket)
	}
	if needCW {
		reg.CloudWatch = cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		logger.Info("cloudwatch client initialized", "namespace", cfg.Observability.MetricNamespace)
	}
	return reg, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config, rc *registryConfig) (aws.Config, error) {
	if rc.awsCfg != nil {
		return *rc.awsCfg, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}
