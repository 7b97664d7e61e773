package config

import (
	"context"
	"os"
)

// SecretProvider maps X_SSM_PARAM references to plaintext values.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// NewSecretProvider picks SSM when a region is configured. Without one the
// references are read as the names of other environment variables, which
// lets a developer point DATABASE_URL_SSM_PARAM at a locally exported value.
func NewSecretProvider(getenv func(string) string) SecretProvider {
	if getenv == nil {
		getenv = os.Getenv
	}
	if region := getenv("AWS_REGION"); region != "" {
		return NewSSMProvider(region, getenv("AWS_ENDPOINT_URL"))
	}
	return EnvVarProvider{}
}

// EnvVarProvider resolves references from the process environment.
type EnvVarProvider struct{}

// GetParametersBatch leaves unset names out of the result; the caller
// reports them as missing.
func (EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			out[k] = v
		}
	}
	return out, nil
}
