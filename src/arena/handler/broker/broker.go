// Package broker consumes the webhook-events and test-runner queues and feeds them into the dispatch pipeline.
package broker

import (
	"context"
	"fmt"

	"github.com/devarena/arena/src/arena/controller/dispatch"
	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/gateway/amqp"
	"github.com/devarena/arena/src/arena/internal/clock"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/internal/supervisor"
	"github.com/devarena/arena/src/arena/mapper"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/uber-go/tally"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKey = "broker"
	_component = "broker"
)

// Config is the "broker" configuration block.
type Config struct {
	Enabled      bool              `yaml:"enabled"`
	WebhookQueue string            `yaml:"webhookQueue"`
	TestQueue    string            `yaml:"testQueue"`
	Restart      supervisor.Config `yaml:"restart"`
	Connection   amqp.Config       `yaml:"connection"`
}

// Params are inbound parameters to initialize the consumer.
type Params struct {
	fx.In

	Config     config.Provider
	Lifecycle  fx.Lifecycle
	Dialer     amqp.Dialer
	Dispatcher dispatch.Dispatcher
	Logger     *zap.SugaredLogger
	Stats      tally.Scope
	Clock      clock.Clock
}

type decodeFunc func(body []byte) (entity.Event, error)

// Consumer reads both queues over one broker connection.
type Consumer struct {
	cfg        Config
	dialer     amqp.Dialer
	dispatcher dispatch.Dispatcher
	logger     *zap.SugaredLogger
	stats      tally.Scope
}

// New constructs the consumer and, when enabled, a supervisor that keeps Run alive for the lifetime of the app.
func New(p Params) (*Consumer, error) {
	var cfg Config
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}

	c := &Consumer{
		cfg:        cfg,
		dialer:     p.Dialer,
		dispatcher: p.Dispatcher,
		logger:     p.Logger.With(zap.String("component", _component)),
		stats:      p.Stats.SubScope("broker"),
	}
	if !cfg.Enabled {
		c.logger.Infow("broker consumer disabled")
		return c, nil
	}
	if cfg.WebhookQueue == "" || cfg.TestQueue == "" {
		return nil, fmt.Errorf("%s.webhookQueue and %s.testQueue are required", _configKey, _configKey)
	}

	sup, err := supervisor.New(supervisor.Params{
		Name:   "broker-consumer",
		Run:    c.Run,
		Config: cfg.Restart,
		Logger: p.Logger,
		Stats:  c.stats,
		Clock:  p.Clock,
	})
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: sup.Start,
		OnStop:  sup.Stop,
	})
	return c, nil
}

// Run consumes until ctx is canceled or the broker connection is lost. Losing the connection is
// returned as an InfrastructureError so that the caller can restart it.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return &errors.InfrastructureError{Component: _component, Err: err}
	}
	defer conn.Close()

	webhooks, err := conn.Consume(ctx, c.cfg.WebhookQueue)
	if err != nil {
		return &errors.InfrastructureError{Component: _component, Err: err}
	}
	tests, err := conn.Consume(ctx, c.cfg.TestQueue)
	if err != nil {
		return &errors.InfrastructureError{Component: _component, Err: err}
	}
	closed := conn.NotifyClose()

	c.logger.Infow("consuming queues",
		zap.String("webhook_queue", c.cfg.WebhookQueue),
		zap.String("test_queue", c.cfg.TestQueue),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return &errors.InfrastructureError{Component: _component, Err: errors.New("connection closed")}
			}
			return &errors.InfrastructureError{Component: _component, Err: amqpErr}

		case d, ok := <-webhooks:
			if !ok {
				return c.deliveriesClosed(ctx, c.cfg.WebhookQueue)
			}
			c.handle(ctx, c.cfg.WebhookQueue, d, mapper.QueuePushToEvent)

		case d, ok := <-tests:
			if !ok {
				return c.deliveriesClosed(ctx, c.cfg.TestQueue)
			}
			c.handle(ctx, c.cfg.TestQueue, d, mapper.QueueTestToEvent)
		}
	}
}

func (c *Consumer) deliveriesClosed(ctx context.Context, queue string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &errors.InfrastructureError{Component: _component, Err: fmt.Errorf("delivery channel for %q closed", queue)}
}

func (c *Consumer) handle(ctx context.Context, queue string, d amqp091.Delivery, decode decodeFunc) {
	event, err := decode(d.Body)
	if err == nil {
		_, err = c.dispatcher.Dispatch(ctx, event)
	}
	c.settle(queue, d, err)
}

// settle acknowledges a processed delivery. Malformed and unresolvable messages are dropped. Other
// failures are requeued once.
func (c *Consumer) settle(queue string, d amqp091.Delivery, err error) {
	scope := c.stats.Tagged(map[string]string{"queue": queue})
	logger := c.logger.With(zap.String("queue", queue), zap.Uint64("delivery_tag", d.DeliveryTag))

	var (
		ackErr  error
		outcome string
	)
	switch {
	case err == nil:
		outcome = "acked"
		ackErr = d.Ack(false)
	case errors.IsRetryable(err) && !d.Redelivered:
		outcome = "requeued"
		logger.Warnw("requeueing message", zap.Error(err))
		ackErr = d.Nack(false, true)
	default:
		outcome = "rejected"
		logger.Errorw("dropping message", zap.Error(err), zap.String("kind", errors.KindOf(err).String()))
		ackErr = d.Nack(false, false)
	}

	scope.Counter(outcome).Inc(1)
	if ackErr != nil {
		logger.Warnw("settling message", zap.String("outcome", outcome), zap.Error(ackErr))
	}
}
