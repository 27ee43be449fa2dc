package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/simroam/simroam/internal/catalog/domain"
	"github.com/simroam/simroam/internal/fulfillment/domain"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/notify"
	"github.com/simroam/simroam/internal/notify/sse"
	orderdomain "github.com/simroam/simroam/internal/order/domain"
	"github.com/simroam/simroam/internal/providers/email"
	"github.com/simroam/simroam/internal/providers/users"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CallbackParams struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	OrderRepo   orderdomain.Repository
	CatalogRepo catalogdomain.Repository
	Users       users.Directory
	Email       email.Provider
	Hub         *sse.Hub
	Dispatcher  *notify.Dispatcher
	Metrics     *metrics.Metrics
}

type CallbackService struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	orderRepo   orderdomain.Repository
	catalogRepo catalogdomain.Repository
	users       users.Directory
	email       email.Provider
	hub         *sse.Hub
	dispatcher  *notify.Dispatcher
	metrics     *metrics.Metrics
}

func NewCallbackService(p CallbackParams) domain.CallbackHandler {
	return &CallbackService{
		db:          p.DB,
		log:         p.Log.Named("fulfillment.callback"),
		genID:       p.GenID,
		repo:        p.Repo,
		orderRepo:   p.OrderRepo,
		catalogRepo: p.CatalogRepo,
		users:       p.Users,
		email:       p.Email,
		hub:         p.Hub,
		dispatcher:  p.Dispatcher,
		metrics:     p.Metrics,
	}
}

// HandleOrderCallback matches the wholesaler completion callback to its
// pending provider order and persists the issued profiles. An unmatched
// request id is rejected without writing anything; a replayed callback is a
// no-op once the provider order is COMPLETED.
func (s *CallbackService) HandleOrderCallback(ctx context.Context, callback domain.OrderCallback) (domain.CallbackResult, error) {
	provider := strings.ToLower(strings.TrimSpace(callback.Provider))
	requestID := strings.TrimSpace(callback.RequestID)
	if provider == "" || requestID == "" {
		return domain.CallbackResult{}, domain.ErrCallbackRejected
	}

	existing, err := s.repo.FindByRequestID(ctx, s.db, provider, requestID)
	if err != nil {
		return domain.CallbackResult{}, err
	}
	if existing == nil {
		return domain.CallbackResult{}, domain.ErrProviderOrderNotFound
	}
	if existing.Status == domain.ProviderOrderStatusCompleted {
		return domain.CallbackResult{
			OrderID:          existing.OrderID,
			AlreadyProcessed: true,
		}, nil
	}

	var result domain.CallbackResult
	var owner snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := s.repo.FindByRequestID(ctx, tx, provider, requestID)
		if err != nil {
			return err
		}
		if po == nil {
			return domain.ErrProviderOrderNotFound
		}
		if po.Status == domain.ProviderOrderStatusCompleted {
			result = domain.CallbackResult{OrderID: po.OrderID, AlreadyProcessed: true}
			return nil
		}

		po.ExternalOrderID = callback.ExternalOrderID
		if callback.ValidityDays > 0 {
			po.ValidityDays = callback.ValidityDays
		}
		if callback.PriceAmount > 0 {
			po.PriceAmount = callback.PriceAmount
		}
		if callback.NetPriceAmount > 0 {
			po.NetPriceAmount = callback.NetPriceAmount
		}
		if err := s.repo.CompleteProviderOrder(ctx, tx, po); err != nil {
			return err
		}

		var order orderdomain.Order
		if err := tx.WithContext(ctx).Raw(`SELECT * FROM orders WHERE id = ?`, po.OrderID).Scan(&order).Error; err != nil {
			return err
		}
		if order.ID == 0 {
			return orderdomain.ErrNotFound
		}
		owner = order.UserID

		name := s.simName(ctx, tx, po)
		now := time.Now().UTC()
		var start *time.Time
		if po.StartDate != nil {
			start = po.StartDate
		} else {
			start = &now
		}
		var end *time.Time
		if po.ValidityDays > 0 {
			e := start.AddDate(0, 0, po.ValidityDays)
			end = &e
		}

		var firstSim snowflake.ID
		for _, profile := range callback.Profiles {
			sim := domain.Sim{
				ID:              s.genID.Generate(),
				ProviderOrderID: po.ID,
				UserID:          order.UserID,
				Name:            name,
				ICCID:           profile.ICCID,
				LPA:             profile.LPA,
				MatchingID:      profile.MatchingID,
				QRCode:          profile.QRCode,
				QRCodeURL:       profile.QRCodeURL,
				Provider:        provider,
				Status:          domain.SimStatusNotActive,
				DataTotalMB:     po.DataAmountMB,
				DataRemainingMB: po.DataAmountMB,
				VoiceTotal:      po.VoiceMinutes,
				VoiceRemaining:  po.VoiceMinutes,
				TextTotal:       po.TextMessages,
				TextRemaining:   po.TextMessages,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.repo.InsertSim(ctx, tx, &sim); err != nil {
				return err
			}
			if firstSim == 0 {
				firstSim = sim.ID
			}

			history := domain.PackageHistory{
				ID:           s.genID.Generate(),
				SimID:        sim.ID,
				Action:       domain.HistoryActionActivation,
				PackageRef:   po.PackageRef,
				DataAmountMB: po.DataAmountMB,
				ValidityDays: po.ValidityDays,
				StartAt:      start,
				EndAt:        end,
				CreatedAt:    now,
			}
			if err := s.repo.InsertPackageHistory(ctx, tx, &history); err != nil {
				return err
			}
			result.SimsCreated++
		}

		if firstSim != 0 {
			if err := s.orderRepo.LinkItemSim(ctx, tx, po.OrderItemID, firstSim); err != nil {
				return err
			}
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, orderdomain.OrderStatusCompleted); err != nil {
			return err
		}
		result.OrderID = order.ID
		return nil
	})
	if err != nil {
		return domain.CallbackResult{}, err
	}
	if result.AlreadyProcessed {
		return result, nil
	}

	s.metrics.ProviderOrders.WithLabelValues(provider, string(domain.ProviderOrderStatusCompleted)).Inc()
	s.log.Info("provider order completed",
		zap.String("order_id", result.OrderID.String()),
		zap.String("external_request_id", requestID),
		zap.Int("sims", result.SimsCreated),
	)
	s.notifyCompleted(result.OrderID, owner)
	return result, nil
}

// simName derives a human-readable sim name from the catalog. Lookup failures
// fall back to a generic label and never abort the callback transaction.
func (s *CallbackService) simName(ctx context.Context, tx *gorm.DB, po *domain.ProviderOrder) string {
	pkg, err := s.catalogRepo.FindByExternalID(ctx, tx, po.Provider, po.PackageRef)
	if err != nil || pkg == nil {
		s.log.Warn("package lookup failed, using generic sim name",
			zap.String("package_ref", po.PackageRef),
			zap.Error(err),
		)
		return "eSIM"
	}
	if pkg.Operator != "" && pkg.Country != "" {
		return fmt.Sprintf("%s %s %s", pkg.Operator, pkg.Country, pkg.Title)
	}
	return pkg.Title
}

func (s *CallbackService) notifyCompleted(orderID, userID snowflake.ID) {
	s.dispatcher.Submit("order-completed-email", func(ctx context.Context) error {
		to, err := s.users.EmailByID(ctx, userID)
		if err != nil {
			return err
		}
		if to == "" {
			return nil
		}
		return s.email.SendTemplate(ctx, []string{to}, "order_confirmation", map[string]any{
			"subject":  "Your eSIM is ready",
			"order_id": orderID.String(),
		})
	})
	s.dispatcher.Submit("order-completed-sse", func(ctx context.Context) error {
		s.hub.Publish(userID, sse.Event{
			Type:    sse.EventOrderCompleted,
			OrderID: orderID.String(),
		})
		return nil
	})
}
