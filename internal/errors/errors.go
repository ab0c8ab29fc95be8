package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for common failure conditions across the runtime.
var (
	// ErrNotConnected indicates an operation was invoked on a session
	// that is not in the running state.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectionClosed indicates the transport was torn down while
	// calls were outstanding.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNotFound indicates a tool, resource, prompt, or server id was
	// not present after a refreshed listing.
	ErrNotFound = errors.New("not found")

	// ErrHandshakeFailed indicates no protocol version could be
	// negotiated, including after exhausting fallback versions.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrNoCompatibleVersion indicates the version intersection between
	// host and peer is empty.
	ErrNoCompatibleVersion = errors.New("no compatible protocol version")

	// ErrUnknownVersion indicates a protocol version id absent from the
	// catalog.
	ErrUnknownVersion = errors.New("unknown protocol version")

	// ErrSecurityBlocked indicates the security validator refused a
	// source or found high-risk issues.
	ErrSecurityBlocked = errors.New("blocked by security policy")

	// ErrInstallFailed indicates a fatal installer stage failure after
	// the retry budget was exhausted.
	ErrInstallFailed = errors.New("install failed")

	// ErrRegistry indicates a persistence failure or registry invariant
	// violation.
	ErrRegistry = errors.New("registry error")

	// ErrValidation indicates the version catalog rejected a message
	// before send.
	ErrValidation = errors.New("message validation failed")
)

// TimeoutError reports that a pending call's deadline elapsed. The
// session and the peer process remain alive.
type TimeoutError struct {
	Method string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for %s", e.Method)
}

// NewTimeout creates a TimeoutError for the given method.
func NewTimeout(method string) *TimeoutError {
	return &TimeoutError{Method: method}
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// PeerError is a JSON-RPC error object returned by the peer. The method
// name is prepended to the message so callers can attribute the failure.
type PeerError struct {
	Method  string
	Code    int
	Message string
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("%s: peer error %d: %s", e.Method, e.Code, e.Message)
}

// NewPeerError creates a PeerError for the given method and JSON-RPC
// error fields.
func NewPeerError(method string, code int, message string) *PeerError {
	return &PeerError{Method: method, Code: code, Message: message}
}

// AsPeerError returns the PeerError wrapped by err, if any.
func AsPeerError(err error) (*PeerError, bool) {
	var pe *PeerError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
