// Package errors defines the harvest error taxonomy.
//
// Every error is scoped to a single collection: a failure aborts that
// collection's run and never its siblings. Fetch errors split into transient
// kinds (network, rate limit, server) that the retry policy may absorb, a
// terminal retries-exhausted kind once the policy gives up, and permanent
// kinds (other 4xx, malformed responses) that are never retried. Persistence
// and write errors are fatal for the collection and leave durable state at
// its last committed value.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Type classifies a harvest error
type Type string

const (
	// TypeNetwork is a transport-level failure (no HTTP response)
	TypeNetwork Type = "network"
	// TypeRateLimit is an HTTP 429, possibly carrying a Retry-After hint
	TypeRateLimit Type = "rate_limit"
	// TypeServer is an HTTP 5xx
	TypeServer Type = "server_error"
	// TypePermanent is a non-retryable API error (4xx other than 429)
	TypePermanent Type = "permanent"
	// TypeParsing is a malformed response body; treated as permanent
	TypeParsing Type = "parsing"
	// TypeExhausted means retries ran out on a transient error
	TypeExhausted Type = "retries_exhausted"
	// TypePersistence is a cursor or dedup snapshot write failure
	TypePersistence Type = "persistence"
	// TypeWrite is an output corpus append failure
	TypeWrite Type = "write"
)

// Error is a harvest error with classification and collection context
type Error struct {
	Type       Type
	Message    string
	Code       int
	Collection string
	Offset     int
	// RetryAfter carries an explicit server backoff hint (429 Retry-After)
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Collection != "" {
		msg += fmt.Sprintf(" [collection=%s offset=%d]", e.Collection, e.Offset)
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Code)
	}
	return msg + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether an error type should be retried
func IsRetryable(t Type) bool {
	switch t {
	case TypeNetwork, TypeRateLimit, TypeServer:
		return true
	default:
		return false
	}
}

// IsRetryableError reports whether err is a retryable harvest error.
// Unclassified errors are not retried.
func IsRetryableError(err error) bool {
	var herr *Error
	if stderrors.As(err, &herr) {
		return IsRetryable(herr.Type)
	}
	return false
}

// TypeOf extracts the harvest error type, or TypePermanent for foreign errors
func TypeOf(err error) Type {
	var herr *Error
	if stderrors.As(err, &herr) {
		return herr.Type
	}
	return TypePermanent
}

// RetryAfterHint extracts an explicit server backoff hint, zero if none
func RetryAfterHint(err error) time.Duration {
	var herr *Error
	if stderrors.As(err, &herr) {
		return herr.RetryAfter
	}
	return 0
}

// ClassifyStatusCode maps an HTTP status code to an error type
func ClassifyStatusCode(code int) Type {
	switch {
	case code == 0:
		return TypeNetwork
	case code == 429:
		return TypeRateLimit
	case code >= 500:
		return TypeServer
	default:
		return TypePermanent
	}
}

// WithContext returns a copy of the error annotated with collection and offset
func WithContext(err error, collection string, offset int) error {
	var herr *Error
	if stderrors.As(err, &herr) {
		annotated := *herr
		annotated.Collection = collection
		annotated.Offset = offset
		return &annotated
	}
	return &Error{
		Type:       TypePermanent,
		Message:    err.Error(),
		Collection: collection,
		Offset:     offset,
		Cause:      err,
	}
}

// NewExhausted wraps a transient error whose retry budget ran out
func NewExhausted(collection string, offset int, cause error) *Error {
	return &Error{
		Type:       TypeExhausted,
		Message:    fmt.Sprintf("transient fetch retries exhausted: %v", cause),
		Collection: collection,
		Offset:     offset,
		Cause:      cause,
	}
}

// NewPersistence wraps a cursor or dedup state write failure
func NewPersistence(collection string, cause error) *Error {
	return &Error{
		Type:       TypePersistence,
		Message:    fmt.Sprintf("state persistence failed: %v", cause),
		Collection: collection,
		Cause:      cause,
	}
}

// NewWrite wraps an output corpus append failure
func NewWrite(collection string, cause error) *Error {
	return &Error{
		Type:       TypeWrite,
		Message:    fmt.Sprintf("corpus append failed: %v", cause),
		Collection: collection,
		Cause:      cause,
	}
}
