// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// OpenStream opens GET /api/jobs/{jobID}/stream and returns the raw
// server-sent event body. The connection stays open until the server ends
// it, the caller closes the body, or ctx is cancelled.
func (c *Client) OpenStream(ctx context.Context, jobID string) (io.ReadCloser, error) {
	endpoint := c.endpoint("api", "jobs", jobID, "stream")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.decorate(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening job stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newRequestError(http.MethodGet, req.URL.Path, resp)
	}
	return resp.Body, nil
}
