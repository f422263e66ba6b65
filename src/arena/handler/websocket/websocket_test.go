package websocket

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devarena/arena/src/arena/controller/auth/authmock"
	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/factory"
	"github.com/devarena/arena/src/arena/internal/clock"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/repository/connection"
	"github.com/gofrs/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type fixture struct {
	h        *Handler
	registry connection.Registry
	auth     *authmock.MockController
	srv      *httptest.Server
}

func newFixture(t *testing.T, values map[string]interface{}) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	authMock := authmock.NewMockController(ctrl)
	registry := connection.New(connection.Params{Stats: tally.NoopScope, Logger: zap.NewNop().Sugar(), Clock: clock.New()})

	cfg, err := config.NewStaticProvider(values)
	require.NoError(t, err)
	h, err := New(Params{
		Config:    cfg,
		Lifecycle: fxtest.NewLifecycle(t),
		Auth:      authMock,
		Registry:  registry,
		Logger:    zap.NewNop().Sugar(),
		Stats:     tally.NoopScope,
		Clock:     clock.New(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, h.Stop(ctx))
		srv.Close()
	})
	return &fixture{h: h, registry: registry, auth: authMock, srv: srv}
}

func (f *fixture) allow(token string) {
	f.auth.EXPECT().Authenticate(gomock.Any(), token).Return(factory.Session(token), nil).AnyTimes()
}

func (f *fixture) dial(t *testing.T, header http.Header, query string) (*gws.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + Pattern + query
	conn, resp, err := gws.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func (f *fixture) connect(t *testing.T, token string) *gws.Conn {
	t.Helper()
	before := len(f.registry.SessionConnections(context.Background(), token))
	conn, _, err := f.dial(t, http.Header{_tokenHeader: []string{token}}, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.registry.SessionConnections(context.Background(), token)) == before+1
	}, 5*time.Second, 5*time.Millisecond)
	return conn
}

func readText(t *testing.T, conn *gws.Conn, timeout time.Duration) (string, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	return string(data), err
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
	}{
		{
			name:   "defaults",
			values: nil,
		},
		{
			name: "timeout tolerates one missed probe",
			values: map[string]interface{}{_configKey: map[string]interface{}{
				"heartbeatInterval": "5s",
				"clientTimeout":     "10s",
			}},
		},
		{
			name: "timeout shorter than two probes",
			values: map[string]interface{}{_configKey: map[string]interface{}{
				"heartbeatInterval": "5s",
				"clientTimeout":     "9s",
			}},
			wantErr: true,
		},
		{
			name:    "incorrectly formatted entry",
			values:  map[string]interface{}{_configKey: "fast"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.NewStaticProvider(tt.values)
			require.NoError(t, err)
			_, err = New(Params{Config: cfg, Lifecycle: fxtest.NewLifecycle(t), Logger: zap.NewNop().Sugar(), Stats: tally.NoopScope})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRelayExcludesSender(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("tok-A")

	c1 := f.connect(t, "tok-A")
	c2 := f.connect(t, "tok-A")

	require.NoError(t, c1.WriteMessage(gws.TextMessage, []byte("ping")))

	got, err := readText(t, c2, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", got)

	_, err = readText(t, c1, 200*time.Millisecond)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestRelayKeepsFrameType(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("tok-A")

	c1 := f.connect(t, "tok-A")
	c2 := f.connect(t, "tok-A")

	require.NoError(t, c1.WriteMessage(gws.BinaryMessage, []byte{0xde, 0xad}))
	c2.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := c2.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gws.BinaryMessage, kind)
	assert.Equal(t, []byte{0xde, 0xad}, data)
}

func TestRelayDoesNotCrossSessions(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("tok-A")
	f.allow("tok-B")

	a1 := f.connect(t, "tok-A")
	f.connect(t, "tok-A")
	b := f.connect(t, "tok-B")

	require.NoError(t, a1.WriteMessage(gws.TextMessage, []byte("for A only")))
	_, err := readText(t, b, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestServerDeliveryInOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("tok-B")
	conn := f.connect(t, "tok-B")

	for _, msg := range []string{"m1", "m2", "m3"} {
		report, err := f.registry.DeliverToSession(context.Background(), "tok-B", factory.TextFrame(msg), uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered())
	}

	for _, want := range []string{"m1", "m2", "m3"} {
		got, err := readText(t, conn, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestHandshakeRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.EXPECT().Authenticate(gomock.Any(), "expired").Return(nil, &errors.AuthenticationError{Err: errors.New("session expired")})
	f.auth.EXPECT().Authenticate(gomock.Any(), "").Return(nil, &errors.AuthenticationError{Err: errors.MissingTokenError})

	_, resp, err := f.dial(t, http.Header{_tokenHeader: []string{"expired"}}, "")
	require.ErrorIs(t, err, gws.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = f.dial(t, nil, "")
	require.ErrorIs(t, err, gws.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Zero(t, f.registry.ConnectionCount(context.Background()))
}

func TestTokenFromQuery(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("browser-tok")

	_, _, err := f.dial(t, nil, "?token=browser-tok")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.registry.SessionConnections(context.Background(), "browser-tok")) == 1
	}, 5*time.Second, 5*time.Millisecond)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	assert.Equal(t, "query", tokenFromRequest(r))

	r.Header.Set(_tokenHeader, "header")
	assert.Equal(t, "header", tokenFromRequest(r))

	assert.Empty(t, tokenFromRequest(httptest.NewRequest(http.MethodGet, "/ws", nil)))
}

func TestOriginAllowList(t *testing.T) {
	f := newFixture(t, map[string]interface{}{_configKey: map[string]interface{}{
		"allowedOrigins": []string{"https://arena.example"},
	}})
	f.allow("tok-A")

	_, resp, err := f.dial(t, http.Header{_tokenHeader: []string{"tok-A"}, "Origin": []string{"https://evil.example"}}, "")
	require.ErrorIs(t, err, gws.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, _, err = f.dial(t, http.Header{_tokenHeader: []string{"tok-A"}, "Origin": []string{"https://ARENA.example"}}, "")
	assert.NoError(t, err)
}

func TestHeartbeatTimeoutClosesSilentClient(t *testing.T) {
	interval, timeout := 20*time.Millisecond, 40*time.Millisecond
	f := newFixture(t, map[string]interface{}{_configKey: map[string]interface{}{
		"heartbeatInterval": interval.String(),
		"clientTimeout":     timeout.String(),
	}})
	f.allow("tok-A")

	// The client never reads, so pings are never answered.
	f.connect(t, "tok-A")
	connected := time.Now()

	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(context.Background()) == 0
	}, 5*time.Second, time.Millisecond)
	assert.Less(t, time.Since(connected), timeout+interval+time.Second)
}

func TestHeartbeatKeepsRespondingClient(t *testing.T) {
	interval, timeout := 20*time.Millisecond, 60*time.Millisecond
	f := newFixture(t, map[string]interface{}{_configKey: map[string]interface{}{
		"heartbeatInterval": interval.String(),
		"clientTimeout":     timeout.String(),
	}})
	f.allow("tok-A")
	conn := f.connect(t, "tok-A")

	// Reading lets the client answer pings with pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(4 * timeout)
	assert.Equal(t, 1, f.registry.ConnectionCount(context.Background()))

	conn.Close()
	<-done
}

func TestClientPingIsAnswered(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("tok-A")
	conn := f.connect(t, "tok-A")

	pongs := make(chan string, 1)
	conn.SetPongHandler(func(data string) error {
		pongs <- data
		return nil
	})
	require.NoError(t, conn.WriteControl(gws.PingMessage, []byte("are-you-there"), time.Now().Add(time.Second)))

	// Control frames are handled while reading; no data frame follows, so the read times out.
	_, err := readText(t, conn, 500*time.Millisecond)
	require.Error(t, err)
	select {
	case got := <-pongs:
		assert.Equal(t, "are-you-there", got)
	default:
		t.Fatal("ping was not answered")
	}
}

func TestClientCloseUnregisters(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("tok-A")
	conn := f.connect(t, "tok-A")

	require.NoError(t, conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "bye")))
	require.Eventually(t, func() bool {
		return f.registry.SessionCount(context.Background()) == 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestStopClosesConnections(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("tok-A")
	conn := f.connect(t, "tok-A")

	require.NoError(t, f.h.Stop(context.Background()))
	assert.Zero(t, f.registry.ConnectionCount(context.Background()))

	_, err := readText(t, conn, 5*time.Second)
	assert.True(t, gws.IsCloseError(err, gws.CloseNormalClosure), "unexpected error %v", err)

	_, resp, err := f.dial(t, http.Header{_tokenHeader: []string{"tok-A"}}, "")
	require.ErrorIs(t, err, gws.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGenericBroadcastReachesEverySession(t *testing.T) {
	f := newFixture(t, nil)
	f.allow("tok-A")
	f.allow("tok-B")
	a := f.connect(t, "tok-A")
	b := f.connect(t, "tok-B")

	frame, err := entity.GenericMessage{Event: entity.GenericEvent{Name: "broadcast"}}.Frame()
	require.NoError(t, err)
	report, err := f.registry.DeliverToAll(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered())

	for _, conn := range []*gws.Conn{a, b} {
		got, err := readText(t, conn, 5*time.Second)
		require.NoError(t, err)
		assert.JSONEq(t, `{"event_type":"broadcast","payload":null}`, got)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
