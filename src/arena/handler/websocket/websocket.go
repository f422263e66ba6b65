// Package websocket accepts client websocket connections and runs one heartbeat and relay loop per connection.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/devarena/arena/src/arena/controller/auth"
	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/gateway/socket"
	"github.com/devarena/arena/src/arena/internal/clock"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/repository/connection"
	"github.com/gofrs/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/uber-go/tally"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Pattern is the route the handler is mounted on.
	Pattern = "/ws"

	_configKey   = "websocket"
	_tokenHeader = "x-session-token"
	_tokenQuery  = "token"

	_defaultHeartbeatInterval = 5 * time.Second
	_defaultClientTimeout     = 10 * time.Second
	_defaultReadLimit         = 512 * 1024
	_defaultRelayRate         = 20
	_defaultRelayBurst        = 40
)

// Close reasons, used as log fields and metric tags.
const (
	_reasonClientClosed = "client_closed"
	_reasonReadError    = "read_error"
	_reasonTimeout      = "heartbeat_timeout"
	_reasonWriterDone   = "writer_stopped"
	_reasonEvicted      = "evicted"
	_reasonPingFailed   = "ping_failed"
	_reasonShutdown     = "shutdown"
)

// Config is the "websocket" configuration block.
type Config struct {
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	ClientTimeout     time.Duration `yaml:"clientTimeout"`
	ReadLimit         int64         `yaml:"readLimit"`
	SendQueueSize     int           `yaml:"sendQueueSize"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	RelayRate         float64       `yaml:"relayRate"`
	RelayBurst        int           `yaml:"relayBurst"`
	AllowedOrigins    []string      `yaml:"allowedOrigins"`
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = _defaultHeartbeatInterval
	}
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = _defaultClientTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = _defaultReadLimit
	}
	if c.RelayRate <= 0 {
		c.RelayRate = _defaultRelayRate
	}
	if c.RelayBurst <= 0 {
		c.RelayBurst = _defaultRelayBurst
	}
}

// validate requires the timeout to tolerate one missed probe.
func (c *Config) validate() error {
	if c.ClientTimeout < 2*c.HeartbeatInterval {
		return fmt.Errorf("%s.clientTimeout (%v) must be at least twice %s.heartbeatInterval (%v)",
			_configKey, c.ClientTimeout, _configKey, c.HeartbeatInterval)
	}
	return nil
}

// Params are inbound parameters to initialize the handler.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Auth      auth.Controller
	Registry  connection.Registry
	Logger    *zap.SugaredLogger
	Stats     tally.Scope
	Clock     clock.Clock
}

// Handler upgrades authenticated requests and owns the resulting connection loops.
type Handler struct {
	cfg      Config
	upgrader gws.Upgrader
	auth     auth.Controller
	registry connection.Registry
	logger   *zap.SugaredLogger
	stats    tally.Scope
	clock    clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New constructs the websocket handler. Open connections are closed when the lifecycle stops.
func New(p Params) (*Handler, error) {
	var cfg Config
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		cfg:      cfg,
		auth:     p.Auth,
		registry: p.Registry,
		logger:   p.Logger,
		stats:    p.Stats.SubScope("websocket"),
		clock:    p.Clock,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = gws.Upgrader{CheckOrigin: h.checkOrigin}

	p.Lifecycle.Append(fx.Hook{
		OnStop: h.Stop,
	})
	return h, nil
}

// Stop closes every open connection and waits for their loops to finish.
func (h *Handler) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for websocket connections: %w", ctx.Err())
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	session, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		status := errors.HTTPStatus(err)
		h.stats.Tagged(map[string]string{"kind": errors.KindOf(err).String()}).Counter("handshakes_rejected").Inc(1)
		h.logger.Infow("websocket handshake rejected", zap.Error(err), zap.Int("status", status))
		http.Error(w, http.StatusText(status), status)
		return
	}

	if !h.track() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	// Upgrade replies to the client itself on failure.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debugw("websocket upgrade failed", zap.Error(err))
		return
	}

	writer := socket.NewWriter(conn, socket.Config{
		QueueSize:    h.cfg.SendQueueSize,
		WriteTimeout: h.cfg.WriteTimeout,
	}, h.logger)

	id, err := h.registry.Register(h.ctx, token, writer)
	if err != nil {
		h.logger.Errorw("registering websocket connection", zap.Error(err))
		writer.Close()
		return
	}

	logger := h.logger.With(zap.Stringer("connection", id), zap.Stringer("user", session.UserID))
	logger.Infow("websocket connected")
	h.stats.Counter("connections_opened").Inc(1)

	reason := h.serve(conn, writer, id, token, logger)
	h.stats.Tagged(map[string]string{"reason": reason}).Counter("connections_closed").Inc(1)
	logger.Infow("websocket closed", zap.String("reason", reason))
}

// track registers a connection loop unless the handler is stopping.
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

// serve runs the connection loop until the connection must close, and returns why.
func (h *Handler) serve(conn *gws.Conn, writer *socket.Writer, id uuid.UUID, token string, logger *zap.SugaredLogger) string {
	ctx := h.ctx
	heartbeat := func() {
		h.registry.UpdateHeartbeat(ctx, id)
	}

	conn.SetReadLimit(h.cfg.ReadLimit)
	conn.SetPongHandler(func(string) error {
		heartbeat()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		heartbeat()
		if err := writer.Pong([]byte(data)); err != nil {
			logger.Debugw("answering ping", zap.Error(err))
		}
		return nil
	})

	inbound := make(chan entity.Frame)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		readPump(conn, inbound, readErr, stop)
	}()
	defer func() {
		close(stop)
		if err := h.registry.Unregister(context.Background(), id); err != nil {
			logger.Debugw("closing websocket writer", zap.Error(err))
		}
		// The reader returns once the writer has closed the transport.
		writer.Close()
		<-readerDone
	}()

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	limiter := rate.NewLimiter(rate.Limit(h.cfg.RelayRate), h.cfg.RelayBurst)

	for {
		select {
		case frame := <-inbound:
			heartbeat()
			if !limiter.Allow() {
				h.stats.Counter("relay_dropped").Inc(1)
				logger.Warnw("relay rate exceeded, dropping frame", zap.Int("size", len(frame.Data)))
				continue
			}
			relay, err := entity.RelayMessage{Original: frame}.Frame()
			if err != nil {
				logger.Warnw("encoding relay frame", zap.Error(err))
				continue
			}
			if _, err := h.registry.DeliverToSession(ctx, token, relay, id); err != nil {
				logger.Warnw("relaying frame to session", zap.Error(err))
			}

		case err := <-readErr:
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway, gws.CloseNoStatusReceived) {
				return _reasonClientClosed
			}
			logger.Debugw("websocket read failed", zap.Error(err))
			return _reasonReadError

		case <-ticker.C:
			last, err := h.registry.LastHeartbeat(ctx, id)
			if err != nil {
				// Dropped by the registry after a failed delivery.
				return _reasonEvicted
			}
			if h.clock.Now().Sub(last) > h.cfg.ClientTimeout {
				return _reasonTimeout
			}
			if err := writer.Ping(); err != nil {
				logger.Debugw("sending ping", zap.Error(err))
				return _reasonPingFailed
			}

		case <-writer.Done():
			return _reasonWriterDone

		case <-ctx.Done():
			return _reasonShutdown
		}
	}
}

func readPump(conn *gws.Conn, inbound chan<- entity.Frame, readErr chan<- error, stop <-chan struct{}) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}

		frame := entity.Frame{Type: entity.FrameText, Data: data}
		if kind == gws.BinaryMessage {
			frame.Type = entity.FrameBinary
		}

		select {
		case inbound <- frame:
		case <-stop:
			return
		}
	}
}

// tokenFromRequest prefers the header. Browsers cannot set headers on a websocket handshake, so they
// pass the token as a query parameter instead.
func tokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(_tokenHeader); token != "" {
		return token
	}
	return r.URL.Query().Get(_tokenQuery)
}

// checkOrigin accepts any origin when no allow-list is configured, and requests without an Origin header.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
