// Package config defines the process configuration for gfsfetch binaries.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"log/slog"
	"strings"
	"time"

	"gfsfetch/internal/types"
)

// SecretString is an alias for types.SecretString so configuration secrets
// are redacted when logged.
type SecretString = types.SecretString

// Catalog backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Config is the top-level configuration struct. Components receive only the
// section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"gfsfetch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Upstream      UpstreamConfig
	Model         ModelConfig
	Catalog       CatalogConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// UpstreamConfig describes the GrADS Data Server and the outbound client.
type UpstreamConfig struct {
	BaseURL      string        `envconfig:"NOMADS_BASE_URL" default:"https://nomads.ncep.noaa.gov/dods" validate:"required,url"`
	Timeout      time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"60s" validate:"gt=0"`
	UserAgent    string        `envconfig:"UPSTREAM_USER_AGENT" default:"gfsfetch/1.0"`
	MaxBodyBytes int64         `envconfig:"UPSTREAM_MAX_BODY_BYTES" default:"268435456" validate:"gt=0"`

	// Circuit breaker around the data server.
	BreakerFailures    uint32        `envconfig:"UPSTREAM_BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"UPSTREAM_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// ModelConfig selects the default GFS product for callers that do not name one.
type ModelConfig struct {
	Resolution string `envconfig:"GFS_RESOLUTION" default:"0p25" validate:"required"`
	Timestep   string `envconfig:"GFS_TIMESTEP"`
}

// Product converts the section to the domain type.
func (m ModelConfig) Product() types.ModelConfig {
	return types.ModelConfig{Resolution: m.Resolution, Timestep: m.Timestep}
}

// CatalogConfig selects and configures the catalog store.
type CatalogConfig struct {
	Backend     string       `envconfig:"CATALOG_BACKEND" default:"file" validate:"oneof=file memory postgres s3"`
	Dir         string       `envconfig:"CATALOG_DIR" default:".gfsfetch/catalog" validate:"required_if=Backend file"`
	Compress    bool         `envconfig:"CATALOG_COMPRESS" default:"false"`
	DatabaseURL SecretString `envconfig:"CATALOG_DATABASE_URL" validate:"required_if=Backend postgres"`
	Bucket      string       `envconfig:"CATALOG_BUCKET" validate:"required_if=Backend s3"`
	Prefix      string       `envconfig:"CATALOG_PREFIX" default:"catalog/"`
}

// AWSConfig holds regional configuration shared by the SDK clients.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"GFSFetch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Overridden with -ldflags "-X gfsfetch/internal/config.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the values linked into this binary.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}

// SlogLevel maps LogLevel to a slog level; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	return ParseLogLevel(c.LogLevel)
}

// ParseLogLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
