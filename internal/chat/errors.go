package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable means the model could not be reached in time.
	ErrGatewayUnavailable = errors.New("model gateway unavailable")
	// ErrGatewayProtocol means the model answered with something unusable.
	ErrGatewayProtocol = errors.New("model gateway protocol error")

	ErrMaxTurns             = errors.New("maximum number of model turns reached")
	ErrCanceledByMiddleware = errors.New("conversation canceled by middleware")
)

// GatewayError carries the failure kind (ErrGatewayUnavailable or
// ErrGatewayProtocol) together with the underlying cause.
type GatewayError struct {
	Kind     error
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	prefix := e.Kind.Error()
	if e.Provider != "" {
		prefix = fmt.Sprintf("%s (%s)", prefix, e.Provider)
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == e.Kind }

func Unavailable(provider string, err error) error {
	return &GatewayError{Kind: ErrGatewayUnavailable, Provider: provider, Err: err}
}

func Protocol(provider string, err error) error {
	return &GatewayError{Kind: ErrGatewayProtocol, Provider: provider, Err: err}
}
