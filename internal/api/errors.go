package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ErrUnsupported is returned for a category/exchange pair the upstream does not serve.
var ErrUnsupported = errors.New("unsupported category or exchange")

// ErrMalformedResponse is returned when a body is not a valid response envelope.
var ErrMalformedResponse = errors.New("malformed response")

// APIError represents an error from the market-data API, either an HTTP
// status >= 400 or an envelope whose code is not 200.
type APIError struct {
	StatusCode int    // HTTP status
	Code       int    // Envelope code (0 when the body was not an envelope)
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Code != 0 && e.Code != e.StatusCode {
		return fmt.Sprintf("market api error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("market api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests ||
		(e.Code >= 500 && e.Code < 600) || e.Code == http.StatusTooManyRequests
}

// IsFatal returns true for authentication failures, which affect every request.
// A token complaint in the envelope is fatal unless its code is 429 or 5xx.
func (e *APIError) IsFatal() bool {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return true
	case e.Code == http.StatusUnauthorized, e.Code == http.StatusForbidden:
		return true
	case e.IsRetryable():
		return false
	}
	return e.Code != 0 && strings.Contains(strings.ToLower(e.Message), "token")
}

// ErrorKind classifies a fetch failure for the caller's abort-or-continue decision.
type ErrorKind int

const (
	// KindPermanent fails one request; retrying will not help, the run continues.
	KindPermanent ErrorKind = iota
	// KindRetryable is transient: network, timeout, 429 or 5xx.
	KindRetryable
	// KindFatal is systemic: authentication or unsupported routing.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	}
	return "permanent"
}

// Classify maps err to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindPermanent
	}
	if errors.Is(err, ErrUnsupported) {
		return KindFatal
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsFatal():
			return KindFatal
		case apiErr.IsRetryable():
			return KindRetryable
		}
		return KindPermanent
	}

	if isTransient(err) {
		return KindRetryable
	}
	return KindPermanent
}

// isTransient reports network-level failures: timeouts, resets, refused connections.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && !errors.Is(err, context.Canceled)
}
