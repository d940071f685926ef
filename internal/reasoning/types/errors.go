package types

import "errors"

// ErrorKind is the stable, client-visible classification of a gateway
// failure. It is serialized verbatim into the OpenAI-compatible error
// body's "type" field.
type ErrorKind string

const (
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindThreadFailed        ErrorKind = "ThreadFailed"
	KindAllThreadsFailed    ErrorKind = "AllThreadsFailed"
	KindFusionFailed        ErrorKind = "FusionFailed"
	KindDeadlineExceeded    ErrorKind = "DeadlineExceeded"
	KindBadRequest          ErrorKind = "BadRequest"
)

// GatewayError is a typed error carrying one of the kinds above plus a
// human-readable message. Only AllThreadsFailed, DeadlineExceeded and
// BadRequest are meant to reach the HTTP boundary; the others are absorbed
// by the layer that produced them.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Wrapped error
}

func (e *GatewayError) Error() string {
	if e.Wrapped != nil {
		return e.Message + ": " + e.Wrapped.Error()
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Wrapped
}

// NewGatewayError builds a GatewayError of the given kind.
func NewGatewayError(kind ErrorKind, message string, wrapped error) *GatewayError {
	return &GatewayError{Kind: kind, Message: message, Wrapped: wrapped}
}

// ErrCircuitOpen is returned by a ModelClient whose circuit breaker has
// tripped; the caller treats it the same as any other upstream failure.
var ErrCircuitOpen = errors.New("reasoning: circuit breaker is open")

// KindOf extracts the ErrorKind from err, defaulting to
// UpstreamUnavailable for errors the pipeline did not classify itself.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUpstreamUnavailable
}
