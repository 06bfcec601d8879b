package odoo

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured is returned before any network activity when the
	// connection settings are incomplete.
	ErrNotConfigured = errors.New("odoo: connection is not configured")
	// ErrTimeout means a single request exceeded the configured timeout.
	ErrTimeout = errors.New("odoo: request timed out")
	// ErrAuthenticationFailed means the backend rejected the credentials.
	ErrAuthenticationFailed = errors.New("odoo: authentication failed")
)

const genericRemoteMessage = "unknown error from Odoo"

// TransportError is a failure below the JSON-RPC layer. StatusCode is zero
// when no HTTP response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("odoo: transport error: %v", e.Err)
	}
	return fmt.Sprintf("odoo: HTTP %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError carries the message of a JSON-RPC error envelope.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return "odoo: " + e.Message
}

// ProtocolError reports a response that is not a usable JSON-RPC envelope.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "odoo: protocol error: " + e.Reason
}

// IsTransient reports whether a failed call may succeed if repeated.
// HTTP 500 is not transient: Odoo answers 500 for server-side exceptions.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	switch te.StatusCode {
	case 0, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
