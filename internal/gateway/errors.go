package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection and request failures.
var (
	// ErrNotConnected is returned by request-style calls while offline.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrNoEndpoint is returned when there is no gateway endpoint to connect to.
	ErrNoEndpoint = errors.New("gateway: no endpoint configured")

	// ErrRequestTimeout is returned when a response does not arrive in time.
	ErrRequestTimeout = errors.New("gateway: request timed out")

	// ErrRequestCancelled is returned to callers whose request was pending
	// when the connection was torn down.
	ErrRequestCancelled = errors.New("gateway: request cancelled")

	// ErrConnectionClosed is returned when writing to a closed connection.
	ErrConnectionClosed = errors.New("gateway: connection closed")

	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("gateway: client closed")
)

// RPCError is a response with ok=false.
type RPCError struct {
	Method  string
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("gateway: %s failed: %s", e.Method, e.Message)
	}
	return fmt.Sprintf("gateway: %s failed: %s: %s", e.Method, e.Code, e.Message)
}

// AuthError reports that the device could not authenticate: the identity
// could not be loaded or used to sign, or the gateway rejected connect.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("gateway: authentication failed: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }
