package rawgkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Error type constants used in ClientError.Type. They partition failures into
// the classes the retry policy and callers reason about.
const (
	ErrorTypeInvalidURL      = "InvalidURL"
	ErrorTypeInvalidResponse = "InvalidResponse"
	ErrorTypeUnauthorized    = "Unauthorized"
	ErrorTypeNotFound        = "NotFound"
	ErrorTypeRateLimit       = "RateLimitExceeded"
	ErrorTypeServer          = "ServerError"
	ErrorTypeAPI             = "APIError"
	ErrorTypeDecoding        = "DecodingError"
	ErrorTypeConnectivity    = "NoConnectivity"
	ErrorTypeTimeout         = "Timeout"
	ErrorTypePinning         = "CertificatePinningFailure"
	ErrorTypeExhausted       = "RetriesExhausted"
	ErrorTypeValidation      = "Validation"
	ErrorTypeUnknown         = "Unknown"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrPinMismatch is returned by the pinned transport when no presented
	// certificate matches the configured pin set for the host.
	ErrPinMismatch = errors.New("rawgkit: certificate pin mismatch")

	// ErrNoPinsConfigured is returned in strict mode for hosts without pins.
	ErrNoPinsConfigured = errors.New("rawgkit: no pins configured for host")

	// ErrRateLimited is returned when the client-side rate limiter denies a request.
	ErrRateLimited = errors.New("rawgkit: rate limited")
)

// ClientError is the error type surfaced by the client. Type is always one of
// the ErrorType constants; the remaining fields carry request diagnostics.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	StatusCode int
	RetryAfter time.Duration
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.RetryAfter > 0 {
		info += fmt.Sprintf("Retry After: %v\n", e.RetryAfter)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsTransient determines if an error represents a transient failure that might
// succeed on retry. Returns true for connectivity failures, timeouts, 5xx
// server responses and rate limiting. Returns false for authorization
// failures, missing resources, malformed requests, decoding failures and
// pinning rejections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeConnectivity, ErrorTypeTimeout, ErrorTypeServer, ErrorTypeRateLimit:
			return true
		default:
			return false
		}
	}

	return false
}

// errorTypeForStatus maps an HTTP status code to an error type constant.
// Codes below 400 map to no error and must not be passed here.
func errorTypeForStatus(status int) string {
	switch {
	case status == 401 || status == 403:
		return ErrorTypeUnauthorized
	case status == 404:
		return ErrorTypeNotFound
	case status == 429:
		return ErrorTypeRateLimit
	case status >= 500:
		return ErrorTypeServer
	case status >= 400:
		return ErrorTypeAPI
	default:
		return ErrorTypeUnknown
	}
}

// errorTypeForTransport classifies a transport-level failure. The pinned
// transport's rejection and context cancellation are recognised before the
// generic timeout / connectivity split.
func errorTypeForTransport(err error) string {
	switch {
	case errors.Is(err, ErrPinMismatch), errors.Is(err, ErrNoPinsConfigured):
		return ErrorTypePinning
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrorTypeConnectivity
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorTypeConnectivity
	}

	return ErrorTypeUnknown
}
