// Package auth validates the session token presented on a websocket handshake.
package auth

import (
	"context"
	"fmt"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/internal/clock"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/repository/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var _sessionExpiredError = errors.New("session expired")

// Controller authenticates session tokens.
type Controller interface {
	// Authenticate returns the live session identified by token.
	Authenticate(ctx context.Context, token string) (*entity.Session, error)
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Store  store.Store
	Clock  clock.Clock
	Logger *zap.SugaredLogger
}

type controller struct {
	store  store.Store
	clock  clock.Clock
	logger *zap.SugaredLogger
}

// New creates an auth controller.
func New(p Params) Controller {
	return &controller{
		store:  p.Store,
		clock:  p.Clock,
		logger: p.Logger,
	}
}

func (c *controller) Authenticate(ctx context.Context, token string) (*entity.Session, error) {
	if token == "" {
		return nil, &errors.AuthenticationError{Err: errors.MissingTokenError}
	}

	session, err := c.store.FindSessionByToken(ctx, token)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, &errors.AuthenticationError{Err: err}
		}
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	if session.Expired(c.clock.Now()) {
		c.logger.Debugw("rejecting expired session", zap.Stringer("user", session.UserID))
		return nil, &errors.AuthenticationError{Err: _sessionExpiredError}
	}
	return session, nil
}
