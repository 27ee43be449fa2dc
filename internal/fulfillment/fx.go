package fulfillment

import (
	"github.com/simroam/simroam/internal/fulfillment/repository"
	"github.com/simroam/simroam/internal/fulfillment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fulfillment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewCallbackService),
)
