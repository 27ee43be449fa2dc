package order

import (
	"github.com/simroam/simroam/internal/order/repository"
	"github.com/simroam/simroam/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
