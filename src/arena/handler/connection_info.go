package handler

import (
	"context"
	"fmt"
	"net"

	"github.com/devarena/arena/src/arena/handler/webhook"
	"github.com/devarena/arena/src/arena/handler/websocket"
	"github.com/devarena/arena/src/arena/internal/httpfx"
	"github.com/devarena/arena/src/arena/internal/serverinfofile"
	"go.uber.org/fx"
)

const (
	_infoFileKeyWebsocket = "websocket-url"
	_infoFileKeyWebhook   = "webhook-url"
)

// outputConnectionInfo records the client facing URLs once the HTTP server is listening.
// The server's own hook has been appended first, so Addr is populated by the time this one runs.
func outputConnectionInfo(lc fx.Lifecycle, server httpfx.Server, infofile serverinfofile.ServerInfoFile) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return writeConnectionInfo(server.Addr(), infofile)
		},
	})
}

func writeConnectionInfo(addr string, infofile serverinfofile.ServerInfoFile) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parsing server address %q: %w", addr, err)
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	hostPort := net.JoinHostPort(host, port)

	entries := []struct {
		key   string
		value string
	}{
		{_infoFileKeyWebsocket, fmt.Sprintf("ws://%s%s", hostPort, websocket.Pattern)},
		{_infoFileKeyWebhook, fmt.Sprintf("http://%s%s", hostPort, webhook.Pattern)},
	}
	for _, e := range entries {
		if err := infofile.UpdateField(e.key, e.value); err != nil {
			return fmt.Errorf("outputting %q to info file: %w", e.key, err)
		}
	}
	return nil
}
