package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies a remote API failure.
type Kind string

const (
	// Unauthorized means the server rejected the credential (HTTP 401).
	Unauthorized Kind = "unauthorized"
	// NotFound means the target resource does not exist (HTTP 404).
	NotFound Kind = "not_found"
	// Validation means the request payload was rejected (HTTP 400/422).
	Validation Kind = "validation"
	// Server means the backend failed (HTTP 5xx).
	Server Kind = "server"
	// NetworkUnavailable means the request never produced an HTTP response.
	NetworkUnavailable Kind = "network_unavailable"
)

// Error is a typed failure from the remote API. StatusCode is zero for
// transport failures.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
}

// IsUnauthorized reports whether err is an Unauthorized API error.
func IsUnauthorized(err error) bool {
	return isKind(err, Unauthorized)
}

// IsNotFound reports whether err is a NotFound API error.
func IsNotFound(err error) bool {
	return isKind(err, NotFound)
}

// IsValidation reports whether err is a Validation API error.
func IsValidation(err error) bool {
	return isKind(err, Validation)
}

// IsNetworkUnavailable reports whether err is a transport-level failure.
func IsNetworkUnavailable(err error) bool {
	return isKind(err, NetworkUnavailable)
}

func isKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// classify maps an HTTP status to an error kind.
func classify(status int) Kind {
	switch {
	case status == 401:
		return Unauthorized
	case status == 404:
		return NotFound
	case status == 400 || status == 422:
		return Validation
	default:
		return Server
	}
}
