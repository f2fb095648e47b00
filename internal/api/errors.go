// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is read for a detail.
const maxErrorBody = 4 << 10

// RequestError reports a non-success HTTP status from the API. It is the
// single error contract for server-side failures; transport failures are
// returned wrapped as-is.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int

	// Detail is the server-supplied explanation, when the body carried one.
	Detail string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("API request failed: %d", e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// newRequestError builds a RequestError from resp, reading a FastAPI-style
// {"detail": "..."} body when present. The caller closes the body.
func newRequestError(method, path string, resp *http.Response) *RequestError {
	reqErr := &RequestError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return reqErr
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &body) != nil || len(body.Detail) == 0 {
		return reqErr
	}
	var detail string
	if json.Unmarshal(body.Detail, &detail) == nil {
		reqErr.Detail = strings.TrimSpace(detail)
	}
	return reqErr
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not
// a RequestError.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

// ValidationError reports a client-side precondition failure detected
// before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
