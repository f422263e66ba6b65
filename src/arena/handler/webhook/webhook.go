// Package webhook receives events pushed by the git-hosting service and the test runner over HTTP.
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/devarena/arena/src/arena/controller/dispatch"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/mapper"
	"github.com/uber-go/tally"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// Pattern is the route the handler is mounted on.
	Pattern = "/api/webhook"

	_configKey           = "webhook"
	_defaultMaxBodyBytes = 1 << 20
)

// Config is the "webhook" configuration block.
type Config struct {
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

// Params are inbound parameters to initialize the handler.
type Params struct {
	fx.In

	Config     config.Provider
	Dispatcher dispatch.Dispatcher
	Logger     *zap.SugaredLogger
	Stats      tally.Scope
}

// Handler serves POST requests carrying {event_type, payload}.
type Handler struct {
	cfg        Config
	dispatcher dispatch.Dispatcher
	logger     *zap.SugaredLogger
	stats      tally.Scope
}

type response struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Delivered *int   `json:"delivered,omitempty"`
}

// New constructs the webhook handler.
func New(p Params) (*Handler, error) {
	var cfg Config
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = _defaultMaxBodyBytes
	}

	return &Handler{
		cfg:        cfg,
		dispatcher: p.Dispatcher,
		logger:     p.Logger,
		stats:      p.Stats.SubScope("webhook"),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.reply(w, http.StatusMethodNotAllowed, response{Status: "error", Message: "method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		h.fail(w, &errors.MalformedError{Err: fmt.Errorf("reading body: %w", err)})
		return
	}

	event, err := mapper.WebhookToEvent(body)
	if err != nil {
		h.fail(w, err)
		return
	}

	outcome, err := h.dispatcher.Dispatch(r.Context(), event)
	if err != nil {
		h.fail(w, err)
		return
	}

	delivered := outcome.Report.Delivered()
	h.stats.Tagged(map[string]string{"event_type": event.Type()}).Counter("accepted").Inc(1)
	h.reply(w, http.StatusOK, response{Status: "success", Delivered: &delivered})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	h.stats.Tagged(map[string]string{"kind": errors.KindOf(err).String()}).Counter("rejected").Inc(1)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("webhook event failed", zap.Error(err))
	} else {
		h.logger.Warnw("webhook event rejected", zap.Error(err), zap.Int("status", status))
	}
	h.reply(w, status, response{Status: "error", Message: err.Error()})
}

func (h *Handler) reply(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debugw("writing webhook response", zap.Error(err))
	}
}
