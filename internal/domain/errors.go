package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEncoding signals request material that cannot be put on the wire (e.g. a bad lookup key).
	ErrEncoding = errors.New("encoding error")
	// ErrTransient signals a 503 from the service. Retried before it reaches the caller.
	ErrTransient = errors.New("transient service error")
	// ErrFatal signals any other HTTP error status from the service.
	ErrFatal = errors.New("service error")
	// ErrNotFound signals a 404 from the service.
	ErrNotFound = errors.New("not found")
	// ErrShape signals a response that violates the expected envelope.
	ErrShape = errors.New("unexpected response shape")
	// ErrInterrupted signals cancellation while waiting on the transport or a backoff.
	ErrInterrupted = errors.New("interrupted")
	// ErrNetwork signals a transport-level failure (no HTTP status was received).
	ErrNetwork = errors.New("network error")
	// ErrInvalidDefinition signals an index definition that breaks the schema invariants.
	ErrInvalidDefinition = errors.New("invalid index definition")
	// ErrResponseTooLarge signals a response body over the client's read limit.
	ErrResponseTooLarge = errors.New("response too large")
)

// ServiceError is an HTTP error status returned by the search service.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.kind().Error(), e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.kind().Error(), e.StatusCode, e.Body)
}

// Unwrap maps the status onto the error taxonomy: 503 is transient, 404 is not-found,
// anything else is fatal.
func (e *ServiceError) Unwrap() error { return e.kind() }

func (e *ServiceError) kind() error {
	switch e.StatusCode {
	case http.StatusServiceUnavailable:
		return ErrTransient
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrFatal
	}
}

// Retryable reports whether the status is the service's back-off signal.
func (e *ServiceError) Retryable() bool { return e.StatusCode == http.StatusServiceUnavailable }

// NewServiceError creates a ServiceError. The body is truncated to keep error strings bounded.
func NewServiceError(status int, body []byte) *ServiceError {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return &ServiceError{StatusCode: status, Body: string(body)}
}

// ShapeError describes where a response diverged from the expected envelope.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrShape.Error(), e.Path, e.Reason)
}

func (e *ShapeError) Unwrap() error { return ErrShape }

// NewShapeError creates a ShapeError for the given JSON path.
func NewShapeError(path, format string, args ...any) error {
	return &ShapeError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// EncodingError describes request material that could not be encoded.
type EncodingError struct {
	Value  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrEncoding.Error(), e.Value, e.Reason)
}

func (e *EncodingError) Unwrap() error { return ErrEncoding }
