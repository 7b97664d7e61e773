package external

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"gfsfetch/internal/types"
)

// DefaultMaxBodyBytes caps a single response. A full 0.25 degree level field
// in ASCII is well under this.
const DefaultMaxBodyBytes = 256 << 20

// DODSClient fetches DAS, DDS and ASCII documents from a GrADS Data Server.
type DODSClient struct {
	base    *BaseClient
	maxBody int64
}

// NewDODSClient wraps base. maxBody <= 0 selects DefaultMaxBodyBytes.
func NewDODSClient(base *BaseClient, maxBody int64) *DODSClient {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &DODSClient{base: base, maxBody: maxBody}
}

// Get issues one GET and returns the status code and body text.
func (c *DODSClient) Get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build request", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return resp.StatusCode, "", types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"failed to read forecast server response", err)
	}
	if int64(len(body)) > c.maxBody {
		return resp.StatusCode, "", types.NewAppError(types.ErrCodeUpstreamMalformed,
			fmt.Sprintf("forecast server response exceeds %d bytes", c.maxBody), nil)
	}
	return resp.StatusCode, string(body), nil
}
