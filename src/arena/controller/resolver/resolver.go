// Package resolver maps a repository identifier to the session that owns it.
package resolver

import (
	"context"
	"fmt"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/repository/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Controller resolves repositories to live sessions.
type Controller interface {
	// Resolve returns the repository hosted at repoURL and its owner's current session.
	Resolve(ctx context.Context, repoURL string) (*entity.Resolution, error)
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Store  store.Store
	Logger *zap.SugaredLogger
}

type controller struct {
	store  store.Store
	logger *zap.SugaredLogger
}

// New creates a resolver controller.
func New(p Params) Controller {
	return &controller{
		store:  p.Store,
		logger: p.Logger,
	}
}

func (c *controller) Resolve(ctx context.Context, repoURL string) (*entity.Resolution, error) {
	if repoURL == "" {
		return nil, &errors.MalformedError{Err: errors.MissingRepoURLError}
	}

	repo, err := c.store.FindRepository(ctx, repoURL)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, &errors.ResolutionError{RepoURL: repoURL, Err: err}
		}
		return nil, fmt.Errorf("finding repository: %w", err)
	}

	session, err := c.store.FindSessionByUser(ctx, repo.UserID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, &errors.ResolutionError{RepoURL: repoURL, Err: err}
		}
		return nil, fmt.Errorf("finding session: %w", err)
	}

	c.logger.Debugw("repository resolved",
		zap.String("repo_url", repoURL),
		zap.Stringer("user", repo.UserID),
	)
	return &entity.Resolution{Session: session, Repository: repo}, nil
}
