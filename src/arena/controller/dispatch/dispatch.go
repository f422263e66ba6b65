// Package dispatch is the ingest pipeline shared by the broker and webhook adapters.
package dispatch

import (
	"context"
	"fmt"

	"github.com/devarena/arena/src/arena/controller/progress"
	"github.com/devarena/arena/src/arena/controller/resolver"
	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/repository/connection"
	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Dispatcher routes a decoded event to the connections that should see it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event entity.Event) (*Outcome, error)
}

// Outcome describes a completed dispatch.
type Outcome struct {
	// Token is empty for events delivered to every connection.
	Token    string
	Report   connection.DeliveryReport
	Progress *entity.Progress
}

// Params are inbound parameters to initialize a new dispatcher.
type Params struct {
	fx.In

	Resolver resolver.Controller
	Progress progress.Controller
	Registry connection.Registry
	Logger   *zap.SugaredLogger
	Stats    tally.Scope
}

type dispatcher struct {
	resolver resolver.Controller
	progress progress.Controller
	registry connection.Registry
	logger   *zap.SugaredLogger
	stats    tally.Scope
}

// New creates a dispatcher.
func New(p Params) Dispatcher {
	return &dispatcher{
		resolver: p.Resolver,
		progress: p.Progress,
		registry: p.Registry,
		logger:   p.Logger,
		stats:    p.Stats.SubScope("dispatch"),
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, event entity.Event) (*Outcome, error) {
	if event == nil {
		return nil, &errors.MalformedError{Err: errors.New("nil event")}
	}
	scope := d.stats.Tagged(map[string]string{"event_type": event.Type()})

	outcome, err := d.dispatch(ctx, event)
	if err != nil {
		scope.Tagged(map[string]string{"kind": errors.KindOf(err).String()}).Counter("failed").Inc(1)
		return outcome, err
	}
	scope.Counter("dispatched").Inc(1)
	return outcome, nil
}

func (d *dispatcher) dispatch(ctx context.Context, event entity.Event) (*Outcome, error) {
	switch e := event.(type) {
	case entity.GenericEvent:
		return d.broadcast(ctx, e)
	case entity.PushEvent:
		res, err := d.resolve(ctx, e)
		if err != nil {
			return nil, err
		}
		return d.deliver(ctx, res.Session.Token, entity.PushMessage{Event: e}, nil)
	case entity.TestResultEvent:
		res, err := d.resolve(ctx, e)
		if err != nil {
			return nil, err
		}
		msg := entity.TestResultMessage{Event: e}
		if e.Success {
			p, err := d.progress.Advance(ctx, res.Session.UserID, res.Repository.ChallengeID)
			if err != nil {
				return nil, &errors.ResolutionError{RepoURL: e.RepoURL, Err: err}
			}
			msg.Progress = p
		}
		return d.deliver(ctx, res.Session.Token, msg, msg.Progress)
	}
	return nil, &errors.MalformedError{Err: fmt.Errorf("unsupported event type %q", event.Type())}
}

func (d *dispatcher) resolve(ctx context.Context, e entity.RepoEvent) (*entity.Resolution, error) {
	if e.Repo() == "" {
		return nil, &errors.MalformedError{Err: errors.MissingRepoURLError}
	}
	return d.resolver.Resolve(ctx, e.Repo())
}

func (d *dispatcher) deliver(ctx context.Context, token string, msg entity.Message, p *entity.Progress) (*Outcome, error) {
	frame, err := msg.Frame()
	if err != nil {
		return nil, err
	}

	report, err := d.registry.DeliverToSession(ctx, token, frame, uuid.Nil)
	outcome := &Outcome{Token: token, Report: report, Progress: p}
	if err != nil {
		return outcome, fmt.Errorf("delivering to session: %w", err)
	}
	if report.Attempted == 0 {
		d.logger.Debugw("session has no open connections, event dropped")
	}
	return outcome, nil
}

func (d *dispatcher) broadcast(ctx context.Context, e entity.GenericEvent) (*Outcome, error) {
	frame, err := entity.GenericMessage{Event: e}.Frame()
	if err != nil {
		return nil, err
	}

	report, err := d.registry.DeliverToAll(ctx, frame)
	outcome := &Outcome{Report: report}
	if err != nil {
		return outcome, fmt.Errorf("broadcasting %q: %w", e.Type(), err)
	}
	return outcome, nil
}
