// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api is a typed client for the ManuWeaver HTTP API: project
// creation, the five workflow actions, artifact and template reads, job
// records and the job log event stream.
//
// Every request is sent with no-cache semantics. Non-2xx responses surface
// as *RequestError. Workflow actions are never retried; read-only requests
// are retried on HTTP 429 only when ReadRetries is configured.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/manuweaver/internal/httputil"
	"github.com/pdiddy/manuweaver/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "manuweaver/0.1"
)

// Client is a ManuWeaver API client. It is safe for concurrent use.
type Client struct {
	base        *url.URL
	http        *http.Client
	stream      *http.Client
	userAgent   string
	token       string
	readRetries int
}

// New creates a client for cfg. An empty base URL selects
// types.DefaultBaseURL; a base URL without a scheme is treated as http.
func New(cfg types.ClientConfig) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
		// No timeout: a stream lasts until the server ends it or the
		// caller cancels.
		stream:      &http.Client{},
		userAgent:   userAgent,
		token:       strings.TrimSpace(cfg.Token),
		readRetries: cfg.ReadRetries,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = types.DefaultBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", raw, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", raw)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""
	return base, nil
}

// BaseURL returns the normalised API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// endpoint joins escaped path segments onto the base URL.
func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := *c.base
	u.Path = c.base.Path + "/" + strings.Join(segments, "/")
	u.RawPath = c.base.EscapedPath() + "/" + strings.Join(escaped, "/")
	return u.String()
}

func (c *Client) decorate(req *http.Request) {
	httputil.NoCache(req)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doJSON sends a JSON request and decodes a JSON response into out.
// retries applies only to HTTP 429 and must be zero for requests that
// mutate server state.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any, retries int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.decorate(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, retries)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newRequestError(method, req.URL.Path, resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	return c.doJSON(ctx, http.MethodGet, endpoint, nil, out, c.readRetries)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, endpoint, body, out, 0)
}

// Health calls GET /healthz and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, c.endpoint("healthz"), &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
