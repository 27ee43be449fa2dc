package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/fulfillment/domain"
	"github.com/simroam/simroam/internal/metrics"
	orderdomain "github.com/simroam/simroam/internal/order/domain"
	"github.com/simroam/simroam/internal/providers/wholesale"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Client  wholesale.Client
	Cfg     config.Config
	Metrics *metrics.Metrics
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	client     wholesale.Client
	webhookURL string
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("fulfillment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		client:     p.Client,
		webhookURL: p.Cfg.Wholesale.WebhookURL,
		metrics:    p.Metrics,
	}
}

// ProcessProviderOrders sends one wholesaler order-create call per request and
// persists the accepted requests as PENDING provider orders, all inside the
// caller's transaction. The wholesaler provisions asynchronously; completion
// arrives later through the order callback.
func (s *Service) ProcessProviderOrders(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, requests []domain.Request) error {
	now := time.Now().UTC()
	for _, req := range requests {
		resp, err := s.client.CreateOrder(ctx, wholesale.CreateOrderRequest{
			ExternalPackageID: req.ExternalPackageID,
			Quantity:          req.Quantity,
			Type:              req.PackageType,
			Description:       fmt.Sprintf("order %s", order.Number),
			WebhookURL:        s.webhookURL,
		})
		if err != nil {
			return err
		}

		po := domain.ProviderOrder{
			ID:                s.genID.Generate(),
			OrderID:           order.ID,
			OrderItemID:       req.OrderItemID,
			Provider:          req.Provider,
			ExternalRequestID: resp.RequestID,
			Status:            domain.ProviderOrderStatusPending,
			PackageRef:        req.ExternalPackageID,
			Quantity:          req.Quantity,
			PackageType:       req.PackageType,
			ValidityDays:      req.ValidityDays,
			DataAmountMB:      req.DataAmountMB,
			VoiceMinutes:      req.VoiceMinutes,
			TextMessages:      req.TextMessages,
			PriceAmount:       req.PriceAmount,
			NetPriceAmount:    req.NetPriceAmount,
			Currency:          order.Currency,
			StartDate:         req.StartDate,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.repo.InsertProviderOrder(ctx, tx, &po); err != nil {
			return err
		}
		s.metrics.ProviderOrders.WithLabelValues(req.Provider, string(domain.ProviderOrderStatusPending)).Inc()

		s.log.Info("provider order created",
			zap.String("order_id", order.ID.String()),
			zap.String("provider", req.Provider),
			zap.String("external_request_id", resp.RequestID),
		)
	}
	return nil
}
