package handler

import (
	"github.com/devarena/arena/src/arena/controller"
	"github.com/devarena/arena/src/arena/handler/broker"
	"github.com/devarena/arena/src/arena/handler/health"
	"github.com/devarena/arena/src/arena/handler/webhook"
	"github.com/devarena/arena/src/arena/handler/websocket"
	"github.com/devarena/arena/src/arena/internal/httpfx"
	"github.com/devarena/arena/src/arena/repository/connection"
	"github.com/devarena/arena/src/arena/repository/store"
	"go.uber.org/fx"
)

// Module provides the inbound surfaces of the event service into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(connection.New),
	fx.Provide(store.New),
	fx.Provide(webhook.New),
	fx.Provide(websocket.New),
	fx.Provide(health.New),
	fx.Provide(broker.New),
	fx.Provide(webhookRoute, websocketRoute, healthRoute),
	fx.Invoke(outputConnectionInfo),
	fx.Invoke(func(c *broker.Consumer) {}),
)

func webhookRoute(h *webhook.Handler) httpfx.RouteResult {
	return httpfx.AsRoute(webhook.Pattern, h)
}

func websocketRoute(h *websocket.Handler) httpfx.RouteResult {
	return httpfx.AsRoute(websocket.Pattern, h)
}

func healthRoute(h *health.Handler) httpfx.RouteResult {
	return httpfx.AsRoute(health.Pattern, h)
}
