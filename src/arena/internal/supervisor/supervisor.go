// Package supervisor keeps a long-running task alive, restarting it with exponential backoff until stopped.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/devarena/arena/src/arena/internal/clock"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	_defaultInitialInterval = 500 * time.Millisecond
	_defaultMaxInterval     = 30 * time.Second
)

// RunFunc is a task that blocks until it fails or ctx is canceled.
type RunFunc func(ctx context.Context) error

// Config controls the restart backoff.
type Config struct {
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
}

// Supervisor runs a single task.
type Supervisor interface {
	// Start launches the task in the background. It does not wait for the task to be ready.
	Start(ctx context.Context) error
	// Stop cancels the task and waits for it to return or for ctx to expire.
	Stop(ctx context.Context) error
}

// Params are the dependencies of a supervisor.
type Params struct {
	Name   string
	Run    RunFunc
	Config Config
	Logger *zap.SugaredLogger
	Stats  tally.Scope
	Clock  clock.Clock
}

type supervisor struct {
	name     string
	run      RunFunc
	cfg      Config
	logger   *zap.SugaredLogger
	restarts tally.Counter
	clock    clock.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a supervisor for p.Run. Zero intervals fall back to defaults.
func New(p Params) (Supervisor, error) {
	if p.Run == nil {
		return nil, errors.New("supervisor requires a run function")
	}

	cfg := p.Config
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = _defaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = _defaultMaxInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}

	return &supervisor{
		name:     p.Name,
		run:      p.Run,
		cfg:      cfg,
		logger:   p.Logger.With(zap.String("task", p.Name)),
		restarts: p.Stats.Tagged(map[string]string{"task": p.Name}).Counter("restarts"),
		clock:    p.Clock,
	}, nil
}

func (s *supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("supervisor already started")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(runCtx, s.done)
	return nil
}

func (s *supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *supervisor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Clock = s.clock
	b.Reset()
	return b
}

func (s *supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := s.newBackOff()
	for {
		started := s.clock.Now()
		err := s.run(ctx)
		if ctx.Err() != nil {
			s.logger.Infow("task stopped")
			return
		}

		// A run that stayed up longer than the backoff ceiling starts over from the initial interval.
		if s.clock.Now().Sub(started) > s.cfg.MaxInterval {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = s.cfg.MaxInterval
		}

		s.restarts.Inc(1)
		s.logger.Warnw("task exited, restarting", zap.Error(err), zap.Duration("backoff", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Infow("task stopped")
			return
		case <-timer.C:
		}
	}
}
