package app

import (
	"context"
	"time"

	"github.com/devarena/arena/src/arena/gateway"
	"github.com/devarena/arena/src/arena/handler"
	"github.com/devarena/arena/src/arena/internal/clock"
	"github.com/devarena/arena/src/arena/internal/core"
	"github.com/devarena/arena/src/arena/internal/fs"
	"github.com/devarena/arena/src/arena/internal/httpfx"
	"github.com/devarena/arena/src/arena/internal/serverinfofile"
	"github.com/uber-go/tally"
	"go.uber.org/fx"
)

// Module defines the arena event service application module.
var Module = fx.Options(
	gateway.Module, // outbounds
	handler.Module, // inbounds
	httpfx.Module,
	fs.Module,
	serverinfofile.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(clock.New),
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "arena",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        EnvLocal,
			RuntimeEnvironment: EnvLocal,
		}
	}),
)
