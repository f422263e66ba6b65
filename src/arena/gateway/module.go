package gateway

import (
	"github.com/devarena/arena/src/arena/gateway/amqp"
	"go.uber.org/fx"
)

// Module provides the outbound clients.
var Module = fx.Options(
	fx.Provide(amqp.New),
)
