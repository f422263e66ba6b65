package errors

import (
	stderr "errors"
	"fmt"

	"github.com/gofrs/uuid"
)

// ConnectionNotFoundError is returned for a connection id that is not registered.
type ConnectionNotFoundError struct {
	ID uuid.UUID
}

// Error is an implementation of the error interface.
func (n *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("connection %q not found", n.ID)
}

// NotFoundConnection returns the connection id and true if ConnectionNotFoundError is part of the
// error chain.
func NotFoundConnection(e error) (_ uuid.UUID, ok bool) {
	var nf *ConnectionNotFoundError
	if !stderr.As(e, &nf) {
		return uuid.Nil, false
	}
	return nf.ID, true
}

// RepositoryNotFoundError indicates that no repository is hosted at URL.
type RepositoryNotFoundError struct {
	URL string
}

// Error is an implementation of the error interface.
func (n *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository with url %q not found", n.URL)
}

// SessionNotFoundError indicates that no live session exists for a user or token.
type SessionNotFoundError struct {
	UserID uuid.UUID
	Token  string
}

// Error is an implementation of the error interface.
func (n *SessionNotFoundError) Error() string {
	if n.UserID != uuid.Nil {
		return fmt.Sprintf("session for user %q not found", n.UserID)
	}
	return "session not found for token"
}

// ChallengeNotFoundError indicates that a challenge id is unknown.
type ChallengeNotFoundError struct {
	ID uuid.UUID
}

// Error is an implementation of the error interface.
func (n *ChallengeNotFoundError) Error() string {
	return fmt.Sprintf("challenge %q not found", n.ID)
}

// IsNotFound reports whether any of the not-found errors is part of the error chain.
func IsNotFound(e error) bool {
	var (
		conn *ConnectionNotFoundError
		repo *RepositoryNotFoundError
		sess *SessionNotFoundError
		chal *ChallengeNotFoundError
	)
	return stderr.As(e, &conn) || stderr.As(e, &repo) || stderr.As(e, &sess) || stderr.As(e, &chal)
}
