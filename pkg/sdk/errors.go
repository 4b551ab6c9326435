package ytproxy

import "github.com/kailas-cloud/ytproxy/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrKeysExhausted     = domain.ErrKeysExhausted
	ErrUpstreamTransport = domain.ErrUpstreamTransport
	ErrUpstreamStatus    = domain.ErrUpstreamStatus
	ErrUpstreamDecode    = domain.ErrUpstreamDecode
)
