package httpfx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/devarena/arena/src/arena/internal/serverinfofile/serverinfofilemock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func newStaticConfig(t *testing.T, values map[string]interface{}) config.Provider {
	t.Helper()
	p, err := config.NewStaticProvider(values)
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		params  func(t *testing.T) Params
		wantErr bool
	}{
		{
			name:    "missing required params",
			params:  func(t *testing.T) Params { return Params{} },
			wantErr: true,
		},
		{
			name: "missing address",
			params: func(t *testing.T) Params {
				return Params{
					Lifecycle: fxtest.NewLifecycle(t),
					Config:    newStaticConfig(t, map[string]interface{}{"http": map[string]interface{}{"shutdownTimeout": "1s"}}),
				}
			},
			wantErr: true,
		},
		{
			name: "incorrectly formatted entry",
			params: func(t *testing.T) Params {
				return Params{
					Lifecycle: fxtest.NewLifecycle(t),
					Config:    newStaticConfig(t, map[string]interface{}{"http": []string{"a", "b"}}),
				}
			},
			wantErr: true,
		},
		{
			name: "invalid route",
			params: func(t *testing.T) Params {
				return Params{
					Lifecycle: fxtest.NewLifecycle(t),
					Config:    newStaticConfig(t, map[string]interface{}{"http": map[string]interface{}{"address": "127.0.0.1:0"}}),
					Routes:    []Route{{Pattern: "/nil"}},
				}
			},
			wantErr: true,
		},
		{
			name: "valid configuration",
			params: func(t *testing.T) Params {
				return Params{
					Lifecycle: fxtest.NewLifecycle(t),
					Config:    newStaticConfig(t, map[string]interface{}{"http": map[string]interface{}{"address": "127.0.0.1:0"}}),
				}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params(t))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessConfigDefaults(t *testing.T) {
	m := module{}
	require.NoError(t, m.processConfig(newStaticConfig(t, map[string]interface{}{
		"http": map[string]interface{}{"address": ":8080"},
	})))
	assert.Equal(t, _defaultReadHeaderTimeout, m.cfg.ReadHeaderTimeout)
	assert.Equal(t, _defaultShutdownTimeout, m.cfg.ShutdownTimeout)
}

func TestServeRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	infoFile := serverinfofilemock.NewMockServerInfoFile(ctrl)
	infoFile.EXPECT().UpdateField(_outputKey, gomock.Any()).Return(nil)

	lc := fxtest.NewLifecycle(t)
	srv, err := New(Params{
		Config:         newStaticConfig(t, map[string]interface{}{"http": map[string]interface{}{"address": "127.0.0.1:0", "shutdownTimeout": "2s"}}),
		Lifecycle:      lc,
		Logger:         zap.NewNop().Sugar(),
		ServerInfoFile: infoFile,
		Routes: []Route{
			AsRoute("/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "pong")
			})).Route,
		},
	})
	require.NoError(t, err)
	assert.Empty(t, srv.Addr())

	lc.RequireStart()
	require.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	resp, err = http.Get("http://" + srv.Addr() + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	http.DefaultClient.CloseIdleConnections()
	lc.RequireStop()
}

func TestOnStartInfoFileFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	infoFile := serverinfofilemock.NewMockServerInfoFile(ctrl)
	infoFile.EXPECT().UpdateField(_outputKey, gomock.Any()).Return(errors.New("read-only file system"))

	srv, err := New(Params{
		Config:         newStaticConfig(t, map[string]interface{}{"http": map[string]interface{}{"address": "127.0.0.1:0"}}),
		Lifecycle:      fxtest.NewLifecycle(t),
		Logger:         zap.NewNop().Sugar(),
		ServerInfoFile: infoFile,
	})
	require.NoError(t, err)
	assert.Error(t, srv.OnStart(context.Background()))
}

func TestOnStopBeforeStart(t *testing.T) {
	m := &module{}
	assert.NoError(t, m.OnStop(context.Background()))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
