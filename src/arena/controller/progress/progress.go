// Package progress advances a user's challenge progress after a successful test run.
package progress

import (
	"context"
	"fmt"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/repository/store"
	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Controller updates challenge progress.
type Controller interface {
	Advance(ctx context.Context, userID, challengeID uuid.UUID) (*entity.Progress, error)
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Store  store.Store
	Logger *zap.SugaredLogger
	Stats  tally.Scope
}

type controller struct {
	store  store.Store
	logger *zap.SugaredLogger
	stats  tally.Scope
}

// New creates a progress controller.
func New(p Params) Controller {
	return &controller{
		store:  p.Store,
		logger: p.Logger,
		stats:  p.Stats.SubScope("progress"),
	}
}

func (c *controller) Advance(ctx context.Context, userID, challengeID uuid.UUID) (*entity.Progress, error) {
	p, err := c.store.AdvanceProgress(ctx, userID, challengeID)
	if err != nil {
		c.stats.Counter("advance_failed").Inc(1)
		return nil, fmt.Errorf("advancing progress for user %s: %w", userID, err)
	}

	c.stats.Tagged(map[string]string{"status": string(p.Status)}).Counter("advanced").Inc(1)

	fields := []interface{}{
		zap.Stringer("user", userID),
		zap.Stringer("challenge", challengeID),
		zap.String("status", string(p.Status)),
		zap.Int("current_step", p.Details.CurrentStep),
	}
	// The advance is already committed; a failed score read only loses the log field.
	if score, err := c.store.LeaderboardScore(ctx, userID); err != nil {
		c.logger.Warnw("reading leaderboard score", zap.Stringer("user", userID), zap.Error(err))
	} else {
		fields = append(fields, zap.Int("score", score))
	}
	c.logger.Infow("progress advanced", fields...)
	return p, nil
}
