package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed page or details exchange.
type ErrorKind string

const (
	// ErrorKindTransport covers network failures, timeouts, and non-2xx
	// responses: the exchange itself failed.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindSchema covers 2xx responses whose payload does not match
	// the expected storefront shape.
	ErrorKindSchema ErrorKind = "schema"
)

// FetchError is the typed error returned by all client fetch operations.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("storefront %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("storefront %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("storefront %s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a retry could plausibly succeed.
// Transport failures are transient; a malformed payload is not.
func (e *FetchError) Retryable() bool {
	return e.Kind == ErrorKindTransport
}

// AsFetchError extracts a *FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func transportError(statusCode int, message string, err error) *FetchError {
	return &FetchError{Kind: ErrorKindTransport, StatusCode: statusCode, Message: message, Err: err}
}

func schemaError(message string, err error) *FetchError {
	return &FetchError{Kind: ErrorKindSchema, StatusCode: 200, Message: message, Err: err}
}
