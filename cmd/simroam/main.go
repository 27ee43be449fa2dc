package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/internal/catalog"
	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/fulfillment"
	"github.com/simroam/simroam/internal/logger"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/migration"
	"github.com/simroam/simroam/internal/notify"
	"github.com/simroam/simroam/internal/order"
	"github.com/simroam/simroam/internal/ordernum"
	"github.com/simroam/simroam/internal/payment"
	"github.com/simroam/simroam/internal/providers/email"
	"github.com/simroam/simroam/internal/providers/users"
	"github.com/simroam/simroam/internal/providers/wholesale"
	"github.com/simroam/simroam/internal/ratelimit"
	"github.com/simroam/simroam/internal/server"
	"github.com/simroam/simroam/internal/worker/usagepoll"
	"github.com/simroam/simroam/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(ordernum.NewGenerator),
		db.Module,
		migration.Module,
		ratelimit.Module,

		wholesale.Module,
		email.Module,
		users.Module,
		notify.Module,

		catalog.Module,
		order.Module,
		payment.Module,
		fulfillment.Module,
		usagepoll.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
