package notify

import (
	"context"

	"github.com/simroam/simroam/internal/notify/sse"
	"go.uber.org/fx"
)

func registerHooks(lc fx.Lifecycle, dispatcher *Dispatcher) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			dispatcher.Close()
			return nil
		},
	})
}

var Module = fx.Module("notify",
	fx.Provide(NewDispatcher),
	fx.Provide(sse.NewHub),
	fx.Invoke(registerHooks),
)
