// Package amqp is the outbound connection to the message broker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKey = "broker.connection"

	_defaultPrefetch  = 16
	_defaultHeartbeat = 10 * time.Second
)

// Config is the "broker.connection" configuration block.
type Config struct {
	URL       string        `yaml:"url"`
	Name      string        `yaml:"name"`
	Prefetch  int           `yaml:"prefetch"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Dialer opens broker connections.
type Dialer interface {
	Dial(ctx context.Context) (Connection, error)
}

// Connection is one broker connection with a single channel shared by its consumers.
type Connection interface {
	// Consume declares a durable queue and starts a manually acknowledged consumer on it.
	// The returned channel is closed when the connection or channel is lost.
	Consume(ctx context.Context, queue string) (<-chan amqp.Delivery, error)
	// NotifyClose receives the error that closed the connection, or is closed on a clean shutdown.
	NotifyClose() <-chan *amqp.Error
	Close() error
}

// Params are inbound parameters to initialize a new dialer.
type Params struct {
	fx.In

	Config config.Provider
	Logger *zap.SugaredLogger
}

type dialer struct {
	cfg    Config
	logger *zap.SugaredLogger
}

// New creates a dialer for the configured broker.
func New(p Params) (Dialer, error) {
	var cfg Config
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("missing field %q in config", _configKey+".url")
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = _defaultPrefetch
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = _defaultHeartbeat
	}

	return &dialer{cfg: cfg, logger: p.Logger}, nil
}

func (d *dialer) Dial(ctx context.Context) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(d.cfg.URL, amqp.Config{
		Heartbeat:  d.cfg.Heartbeat,
		Properties: amqp.Table{"connection_name": d.cfg.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := ch.Qos(d.cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting prefetch: %w", err)
	}

	d.logger.Infow("connected to broker", zap.String("name", d.cfg.Name))
	return &connection{
		conn:   conn,
		ch:     ch,
		closed: conn.NotifyClose(make(chan *amqp.Error, 1)),
		name:   d.cfg.Name,
	}, nil
}

type connection struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed chan *amqp.Error
	name   string
}

func (c *connection) Consume(ctx context.Context, queue string) (<-chan amqp.Delivery, error) {
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	if _, err := c.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declaring queue %q: %w", queue, err)
	}

	deliveries, err := c.ch.ConsumeWithContext(ctx, queue, c.name+"-"+queue, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consuming queue %q: %w", queue, err)
	}
	return deliveries, nil
}

func (c *connection) NotifyClose() <-chan *amqp.Error {
	return c.closed
}

func (c *connection) Close() error {
	if c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
