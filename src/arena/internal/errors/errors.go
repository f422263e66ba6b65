package errors

import (
	stderr "errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

// Kind classifies a failure by how callers must react to it.
type Kind int

const (
	// KindUnknown is any error that carries no classification.
	KindUnknown Kind = iota
	// KindAuthentication is a missing, invalid or expired session token.
	KindAuthentication
	// KindMalformed is an undecodable payload or a missing required field. Never retried.
	KindMalformed
	// KindResolution is an event whose repository or session cannot be found. Never retried.
	KindResolution
	// KindTransport is a write failure on a single client connection.
	KindTransport
	// KindInfrastructure is the loss of an external dependency such as the broker connection.
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindMalformed:
		return "malformed"
	case KindResolution:
		return "resolution"
	case KindTransport:
		return "transport"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

var (
	// MissingRepoURLError reports an event without a repository identifier.
	MissingRepoURLError = New("repository url is missing or empty")
	// MissingTokenError reports a handshake without a session token.
	MissingTokenError = New("session token is missing")
	// SenderClosedError reports a write to a connection whose writer has stopped.
	SenderClosedError = New("connection writer is closed")
	// SendQueueFullError reports a connection that cannot keep up with its outbound queue.
	SendQueueFullError = New("connection send queue is full")
)

// AuthenticationError wraps a handshake failure.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// MalformedError wraps an input that can never be processed.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed event: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// ResolutionError wraps a failed repository to session lookup.
type ResolutionError struct {
	RepoURL string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %q: %v", e.RepoURL, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// DeliveryError reports a delivery in which no targeted connection accepted the frame.
type DeliveryError struct {
	Attempted int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed for all %d connections: %v", e.Attempted, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// InfrastructureError wraps the loss of an external dependency.
type InfrastructureError struct {
	Component string
	Err       error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Component, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// KindOf reports the classification of the first typed error in the chain.
func KindOf(e error) Kind {
	var (
		auth  *AuthenticationError
		mal   *MalformedError
		res   *ResolutionError
		del   *DeliveryError
		infra *InfrastructureError
	)
	switch {
	case e == nil:
		return KindUnknown
	case stderr.As(e, &auth), stderr.Is(e, MissingTokenError):
		return KindAuthentication
	case stderr.As(e, &mal), stderr.Is(e, MissingRepoURLError):
		return KindMalformed
	case stderr.As(e, &res):
		return KindResolution
	case stderr.As(e, &del), stderr.Is(e, SenderClosedError), stderr.Is(e, SendQueueFullError):
		return KindTransport
	case stderr.As(e, &infra):
		return KindInfrastructure
	}
	return KindUnknown
}

// IsBadRequest reports whether the error was caused by the caller's input.
func IsBadRequest(e error) bool {
	return KindOf(e) == KindMalformed
}

// IsRetryable reports whether processing the same input again may succeed.
func IsRetryable(e error) bool {
	switch KindOf(e) {
	case KindTransport, KindInfrastructure, KindUnknown:
		return e != nil
	}
	return false
}

// HTTPStatus maps an error to the status code returned to synchronous callers.
func HTTPStatus(e error) int {
	if e == nil {
		return http.StatusOK
	}
	switch KindOf(e) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindMalformed:
		return http.StatusBadRequest
	case KindResolution:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
