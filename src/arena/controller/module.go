package controller

import (
	"github.com/devarena/arena/src/arena/controller/auth"
	"github.com/devarena/arena/src/arena/controller/dispatch"
	"github.com/devarena/arena/src/arena/controller/progress"
	"github.com/devarena/arena/src/arena/controller/resolver"
	"go.uber.org/fx"
)

// Module provides the controllers.
var Module = fx.Options(
	fx.Provide(auth.New),
	fx.Provide(resolver.New),
	fx.Provide(progress.New),
	fx.Provide(dispatch.New),
)
