package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a malformed or missing request parameter.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidKind signals an unknown content kind.
	ErrInvalidKind = errors.New("invalid content kind")
	// ErrKindMismatch signals an upstream item of a different kind than requested.
	ErrKindMismatch = errors.New("content kind mismatch")

	// ErrKeysExhausted signals that no key has enough budget left for the request.
	ErrKeysExhausted = errors.New("upstream keys exhausted")
	// ErrUpstreamTransport signals a connection, TLS or timeout failure talking to the upstream.
	ErrUpstreamTransport = errors.New("upstream transport error")
	// ErrUpstreamStatus signals a non-success upstream response.
	ErrUpstreamStatus = errors.New("upstream error")
	// ErrUpstreamDecode signals an upstream body that does not match the expected shape.
	ErrUpstreamDecode = errors.New("upstream decode error")
)

// KeysExhaustedError wraps ErrKeysExhausted with the operation that could not be served.
type KeysExhaustedError struct {
	Operation string
}

func (e *KeysExhaustedError) Error() string {
	return fmt.Sprintf("%s: no keys available for %s", ErrKeysExhausted.Error(), e.Operation)
}

func (e *KeysExhaustedError) Unwrap() error { return ErrKeysExhausted }

// NewKeysExhausted creates a keys exhausted error for the operation.
func NewKeysExhausted(operation string) error {
	return &KeysExhaustedError{Operation: operation}
}

// UpstreamError wraps ErrUpstreamStatus with the HTTP status returned by the upstream.
type UpstreamError struct {
	Operation string
	Status    int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", ErrUpstreamStatus.Error(), e.Operation, e.Status)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamStatus }

// NewUpstreamError creates an upstream status error.
func NewUpstreamError(operation string, status int) error {
	return &UpstreamError{Operation: operation, Status: status}
}
