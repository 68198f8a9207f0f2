package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorType classifies lookup failures. Every type is a decline for the
// cascade; the distinction drives retries and logging.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeTimeout: deadline or cancellation hit (retryable)
	ErrorTypeTimeout
	// ErrorTypeUpstream: transport failure or non-200 status (retryable on 5xx/429)
	ErrorTypeUpstream
	// ErrorTypeMalformed: response could not be decoded
	ErrorTypeMalformed
	// ErrorTypeNoContent: valid response without usable chapter data
	ErrorTypeNoContent
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeUpstream:
		return "upstream"
	case ErrorTypeMalformed:
		return "malformed"
	case ErrorTypeNoContent:
		return "no_content"
	default:
		return "unknown"
	}
}

// LookupError is returned by every Source.
type LookupError struct {
	Type       ErrorType
	Source     string
	Message    string
	StatusCode int
	Cause      error
}

func (e *LookupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *LookupError) Unwrap() error { return e.Cause }

// IsRetryable reports whether another attempt may succeed.
func (e *LookupError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout:
		return true
	case ErrorTypeUpstream:
		return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
	default:
		return false
	}
}

func newError(source string, t ErrorType, msg string, cause error) *LookupError {
	return &LookupError{Type: t, Source: source, Message: msg, Cause: cause}
}

// requestError classifies an http.Client.Do failure.
func requestError(ctx context.Context, source string, err error) *LookupError {
	var netErr net.Error
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newError(source, ErrorTypeTimeout, "request timed out", err)
	}
	return newError(source, ErrorTypeUpstream, "request failed", err)
}

// IsType reports whether err is a LookupError of type t.
func IsType(err error, t ErrorType) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Type == t
}
