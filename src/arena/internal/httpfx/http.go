// Package httpfx runs the HTTP server that every inbound route of the service is mounted on.
package httpfx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/devarena/arena/src/arena/internal/serverinfofile"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKey = "http"
	_outputKey = "http-address"

	_defaultReadHeaderTimeout = 10 * time.Second
	_defaultShutdownTimeout   = 5 * time.Second
)

// Module is an fx module serving the routes contributed to the "routes" group.
var Module = fx.Provide(New)

// Config is the "http" configuration block.
type Config struct {
	Address           string        `yaml:"address"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

// Route binds a handler to a ServeMux pattern.
type Route struct {
	Pattern string
	Handler http.Handler
}

// RouteResult contributes a Route to the server.
type RouteResult struct {
	fx.Out

	Route Route `group:"routes"`
}

// AsRoute wraps a handler so that it is mounted at pattern.
func AsRoute(pattern string, h http.Handler) RouteResult {
	return RouteResult{Route: Route{Pattern: pattern, Handler: h}}
}

// Server is the running HTTP server.
type Server interface {
	// Addr returns the address the server listens on. Empty until started.
	Addr() string
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
}

// Params define values to be used by the server.
type Params struct {
	fx.In

	Config         config.Provider
	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	ServerInfoFile serverinfofile.ServerInfoFile
	Routes         []Route `group:"routes"`
}

type module struct {
	cfg            Config
	srv            *http.Server
	ln             net.Listener
	logger         *zap.SugaredLogger
	serverInfoFile serverinfofile.ServerInfoFile
	done           chan struct{}
}

// New creates a server for the configured address and registers it with the lifecycle.
func New(p Params) (Server, error) {
	if p.Lifecycle == nil || p.Config == nil {
		return nil, errors.New("required parameters are missing")
	}

	m := &module{
		logger:         p.Logger,
		serverInfoFile: p.ServerInfoFile,
		done:           make(chan struct{}),
	}
	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	for _, r := range p.Routes {
		if r.Pattern == "" || r.Handler == nil {
			return nil, fmt.Errorf("invalid route %q", r.Pattern)
		}
		mux.Handle(r.Pattern, r.Handler)
	}
	m.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: m.cfg.ReadHeaderTimeout,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.OnStart,
		OnStop:  m.OnStop,
	})
	return m, nil
}

func (m *module) Addr() string {
	if m.ln == nil {
		return ""
	}
	return m.ln.Addr().String()
}

// OnStart binds the listener and serves in the background.
func (m *module) OnStart(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", m.cfg.Address, err)
	}
	if err := m.serverInfoFile.UpdateField(_outputKey, ln.Addr().String()); err != nil {
		ln.Close()
		return err
	}
	m.ln = ln

	go m.serve()
	m.logger.Infow("started HTTP inbound", zap.String("address", m.Addr()))
	return nil
}

// OnStop stops accepting requests and waits for in-flight ones until the shutdown timeout.
func (m *module) OnStop(ctx context.Context) error {
	if m.ln == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	err := m.srv.Shutdown(ctx)
	<-m.done
	return err
}

func (m *module) serve() {
	defer close(m.done)
	if err := m.srv.Serve(m.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Errorw("HTTP server stopped", zap.Error(err))
	}
}

func (m *module) processConfig(cfg config.Provider) error {
	if err := cfg.Get(_configKey).Populate(&m.cfg); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKey, err)
	}

	if m.cfg.Address == "" {
		return fmt.Errorf("missing field %q in config", _configKey+".address")
	}
	if m.cfg.ReadHeaderTimeout <= 0 {
		m.cfg.ReadHeaderTimeout = _defaultReadHeaderTimeout
	}
	if m.cfg.ShutdownTimeout <= 0 {
		m.cfg.ShutdownTimeout = _defaultShutdownTimeout
	}
	return nil
}
