// Package health reports liveness of the service and its database.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/devarena/arena/src/arena/repository/connection"
	"github.com/devarena/arena/src/arena/repository/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pattern is the route the handler is mounted on.
const Pattern = "/health"

const _pingTimeout = 2 * time.Second

// Params are inbound parameters to initialize the handler.
type Params struct {
	fx.In

	Registry connection.Registry
	Store    store.Store
	Logger   *zap.SugaredLogger
}

// Handler serves GET /health.
type Handler struct {
	registry connection.Registry
	store    store.Store
	logger   *zap.SugaredLogger
}

type status struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Connections int    `json:"connections"`
	Sessions    int    `json:"sessions"`
}

// New constructs the health handler.
func New(p Params) *Handler {
	return &Handler{
		registry: p.Registry,
		store:    p.Store,
		logger:   p.Logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	body := status{
		Status:      "ok",
		Connections: h.registry.ConnectionCount(ctx),
		Sessions:    h.registry.SessionCount(ctx),
	}
	code := http.StatusOK

	pingCtx, cancel := context.WithTimeout(ctx, _pingTimeout)
	defer cancel()
	if err := h.store.Ping(pingCtx); err != nil {
		h.logger.Warnw("database health check failed", zap.Error(err))
		body.Status = "unavailable"
		body.Message = "database connection failed"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
