package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 1 << 20

// DownstreamError is a non-2xx answer from an upstream API. Code, Type and
// Message are filled when the body uses the common {"error":{...}} shape
// (our own services and Stripe both do).
type DownstreamError struct {
	Service    string
	StatusCode int
	Code       string
	Type       string
	Message    string
	Body       string
}

func (e *DownstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d (%s): %s", e.Service, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated later.
func (e *DownstreamError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns it as a *DownstreamError.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", service, resp.StatusCode, err)
	}

	de := &DownstreamError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		de.Code = env.Error.Code
		de.Type = env.Error.Type
		de.Message = env.Error.Message
	}
	return de
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
