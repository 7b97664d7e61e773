// Package external is the boundary between the forecast logic and the remote
// data server. All outbound HTTP calls are routed through the BaseClient,
// which adds request ID propagation, a User-Agent, circuit breaking, and
// error mapping. It never retries: each call is exactly one attempt.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"gfsfetch/internal/types"
)

// BreakerSettings configures the circuit breaker around a BaseClient.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
	// Interval clears the counts while closed; zero never clears.
	Interval time.Duration
}

// DefaultBreakerSettings returns sensible defaults for the data server.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		Interval:            60 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithBreaker replaces the circuit breaker, e.g. to share one across clients.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) {
		if cb != nil {
			c.breaker = cb
		}
	}
}

// NewBreaker creates a breaker that trips on transport errors, 5xx and 429.
func NewBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewBaseClient creates a BaseClient with the given http client, breaker
// name and settings, and user agent string.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	settings BreakerSettings,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	bc := &BaseClient{
		client:    httpClient,
		breaker:   NewBreaker(breakerName, settings),
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// errStatus marks responses the breaker counts as failures while still
// handing them back to the caller.
type errStatus int

func (e errStatus) Error() string { return fmt.Sprintf("upstream returned %d", int(e)) }

// Do executes the request once:
//  1. Request ID injection (X-Request-ID from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping (5xx and 429 count as failures)
//  4. Error mapping to types.AppError
//
// Any HTTP response, including 5xx, is returned as-is so the caller can
// inspect the status; the caller closes the body. Transport failures and an
// open breaker return a types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, errStatus(r.StatusCode)
		}
		return r, nil
	})

	var status errStatus
	if err != nil && errors.As(err, &status) && resp != nil {
		return resp, nil
	}
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp, nil
}

// State reports the breaker state, for health checks.
func (c *BaseClient) State() gobreaker.State {
	return c.breaker.State()
}

// mapError translates transport-level failures into AppErrors.
func (c *BaseClient) mapError(err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; forecast server unavailable",
			err,
		)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamUnavailable,
		"forecast server request failed",
		err,
	)
}
