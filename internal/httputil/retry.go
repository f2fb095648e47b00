// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the API client.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay is the first backoff on HTTP 429 when the server sends no
// Retry-After. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryDelay caps a single wait, whether computed or server-supplied.
var MaxRetryDelay = 30 * time.Second

// DoWithRetry sends req and resends it after each HTTP 429 (Too Many
// Requests), at most maxRetries times. A zero maxRetries sends it once.
//
// The wait honours a Retry-After header in seconds and otherwise doubles
// from RetryBaseDelay. The final 429 response is returned unread so the
// caller can report it. Cancelling ctx during a wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryDelay(resp, attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryDelay(resp *http.Response, attempt int) time.Duration {
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
		if secs >= int(MaxRetryDelay/time.Second) {
			return MaxRetryDelay
		}
		return time.Duration(secs) * time.Second
	}

	wait := RetryBaseDelay
	for range attempt {
		if wait >= MaxRetryDelay {
			break
		}
		wait *= 2
	}
	return min(wait, MaxRetryDelay)
}

// NoCache marks req so that neither the client nor intermediaries serve
// it from a cache. Every workflow action mutates server-side state.
func NoCache(req *http.Request) {
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
}
