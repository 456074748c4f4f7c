package searchidx

import "github.com/kailas-cloud/searchidx/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEncoding          = domain.ErrEncoding
	ErrTransient         = domain.ErrTransient
	ErrFatal             = domain.ErrFatal
	ErrNotFound          = domain.ErrNotFound
	ErrShape             = domain.ErrShape
	ErrInterrupted       = domain.ErrInterrupted
	ErrNetwork           = domain.ErrNetwork
	ErrInvalidDefinition = domain.ErrInvalidDefinition
	ErrResponseTooLarge  = domain.ErrResponseTooLarge
)

// ServiceError carries the HTTP status and (truncated) body of a failed call.
// Use errors.As() to extract it.
type ServiceError = domain.ServiceError

// ShapeError reports a response that did not match the expected envelope.
type ShapeError = domain.ShapeError

// EncodingError reports a value that could not be put on the wire.
type EncodingError = domain.EncodingError
