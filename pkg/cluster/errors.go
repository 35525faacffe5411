package cluster

import (
	"errors"
	"fmt"
)

// Sentinel errors for gateway operations.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource with that name already exists.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrNotReady indicates the container has not started yet, so logs
	// are not available. Callers retry.
	ErrNotReady = errors.New("container not ready")

	// ErrUnauthorized indicates the client lacks permission for the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidManifest indicates the control plane rejected the object spec.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrUnavailable indicates the control plane could not be reached.
	ErrUnavailable = errors.New("control plane unavailable")

	// ErrWaitTimeout indicates a bounded wait elapsed before the
	// condition held.
	ErrWaitTimeout = errors.New("wait timed out")
)

// GatewayError wraps control-plane errors with operation context.
type GatewayError struct {
	// Op is the gateway operation that failed (e.g., "CreateSecret").
	Op string

	// Ref is the resource the operation targeted.
	Ref ResourceRef

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists returns true if the error indicates a name collision.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotReady returns true if the error indicates the container has not started.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// IsUnauthorized returns true if the error indicates missing permissions.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsWaitTimeout returns true if the error indicates a bounded wait expired.
func IsWaitTimeout(err error) bool {
	return errors.Is(err, ErrWaitTimeout)
}
