package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/simroam/simroam/internal/catalog/sync"
	"github.com/simroam/simroam/internal/config"
	fulfillmentdomain "github.com/simroam/simroam/internal/fulfillment/domain"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/notify/sse"
	orderdomain "github.com/simroam/simroam/internal/order/domain"
	"github.com/simroam/simroam/internal/payment/adapters"
	paymentdomain "github.com/simroam/simroam/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	return NewEngine(log, m)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	db          *gorm.DB
	orderSvc    orderdomain.Service
	attemptSvc  paymentdomain.AttemptService
	confirmSvc  paymentdomain.ConfirmationService
	adapters    *adapters.Registry
	callbacks   fulfillmentdomain.CallbackHandler
	fulfillRepo fulfillmentdomain.Repository
	hub         *sse.Hub
	syncer      *sync.Syncer
	metrics     *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	OrderSvc    orderdomain.Service
	AttemptSvc  paymentdomain.AttemptService
	ConfirmSvc  paymentdomain.ConfirmationService
	Adapters    *adapters.Registry
	Callbacks   fulfillmentdomain.CallbackHandler
	FulfillRepo fulfillmentdomain.Repository
	Hub         *sse.Hub
	Syncer      *sync.Syncer
	Metrics     *metrics.Metrics
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http"),
		db:          p.DB,
		orderSvc:    p.OrderSvc,
		attemptSvc:  p.AttemptSvc,
		confirmSvc:  p.ConfirmSvc,
		adapters:    p.Adapters,
		callbacks:   p.Callbacks,
		fulfillRepo: p.FulfillRepo,
		hub:         p.Hub,
		syncer:      p.Syncer,
		metrics:     p.Metrics,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1", s.UserRequired())

	api.POST("/orders", s.CreateOrder)
	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/payments", s.CreatePayment)
	api.POST("/orders/:id/payments/:payment_id/confirm", s.ConfirmPayment)
	api.GET("/events", s.StreamEvents)
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")

	webhooks.POST("/payments/:provider", s.HandlePaymentWebhook)
	webhooks.POST("/fulfillment/:provider", s.HandleFulfillmentCallback)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/catalog/sync", s.SyncCatalog)
}
