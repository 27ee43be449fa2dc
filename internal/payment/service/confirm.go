package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/simroam/simroam/internal/catalog/domain"
	fulfillmentdomain "github.com/simroam/simroam/internal/fulfillment/domain"
	"github.com/simroam/simroam/internal/notify"
	"github.com/simroam/simroam/internal/notify/sse"
	orderdomain "github.com/simroam/simroam/internal/order/domain"
	"github.com/simroam/simroam/internal/payment/domain"
	"github.com/simroam/simroam/internal/usercontext"
	pkgdb "github.com/simroam/simroam/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ConfirmParams struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Repo        domain.Repository
	OrderRepo   orderdomain.Repository
	CatalogRepo catalogdomain.Repository
	Fulfillment fulfillmentdomain.Service
	FulfillRepo fulfillmentdomain.Repository
	Hub         *sse.Hub
	Dispatcher  *notify.Dispatcher
}

type ConfirmationService struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	orderRepo   orderdomain.Repository
	catalogRepo catalogdomain.Repository
	fulfillment fulfillmentdomain.Service
	fulfillRepo fulfillmentdomain.Repository
	hub         *sse.Hub
	dispatcher  *notify.Dispatcher
}

func NewConfirmationService(p ConfirmParams) domain.ConfirmationService {
	return &ConfirmationService{
		db:          p.DB,
		log:         p.Log.Named("payment.confirmation"),
		repo:        p.Repo,
		orderRepo:   p.OrderRepo,
		catalogRepo: p.CatalogRepo,
		fulfillment: p.Fulfillment,
		fulfillRepo: p.FulfillRepo,
		hub:         p.Hub,
		dispatcher:  p.Dispatcher,
	}
}

// Confirm transitions the order to PAID and records the fulfillment requests
// in one transaction. The idempotency gate: an attempt already PAID, or any
// existing provider order for this order, short-circuits to already_confirmed
// with zero writes. Safe under at-least-once, out-of-order webhook delivery;
// the unique index on (provider, external_request_id) and the per-item unique
// index on provider_orders back the check under concurrent delivery.
func (s *ConfirmationService) Confirm(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResult, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.ConfirmResult{}, orderdomain.ErrInvalidUser
	}
	orderID, err := snowflake.ParseString(strings.TrimSpace(req.OrderID))
	if err != nil {
		return domain.ConfirmResult{}, orderdomain.ErrNotFound
	}
	paymentID, err := snowflake.ParseString(strings.TrimSpace(req.PaymentID))
	if err != nil {
		return domain.ConfirmResult{}, domain.ErrAttemptNotFound
	}

	var result domain.ConfirmResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDForUser(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrNotFound
		}

		attempt, err := s.repo.FindByIDForUser(ctx, tx, userID, orderID, paymentID)
		if err != nil {
			return err
		}
		if attempt == nil {
			return domain.ErrAttemptNotFound
		}

		if req.Amount != nil && *req.Amount != attempt.Amount {
			return domain.ErrAmountMismatch
		}

		existing, err := s.fulfillRepo.CountByOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if attempt.Status == domain.AttemptStatusPaid || existing > 0 {
			result = domain.ConfirmResult{
				Status:  domain.ConfirmStatusAlreadyConfirmed,
				Attempt: *attempt,
			}
			return nil
		}

		if err := s.repo.MarkPaid(ctx, tx, attempt.ID, req.ReferenceID); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, orderdomain.OrderStatusPaid); err != nil {
			return err
		}

		requests, err := s.buildRequests(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if err := s.fulfillment.ProcessProviderOrders(ctx, tx, order, requests); err != nil {
			return err
		}

		attempt.Status = domain.AttemptStatusPaid
		attempt.ProviderRef = req.ReferenceID
		result = domain.ConfirmResult{
			Status:  domain.ConfirmStatusConfirmed,
			Attempt: *attempt,
		}
		return nil
	})
	if err != nil {
		// A concurrent confirmation that commits between the gate read and
		// the provider-order insert surfaces here as a unique index
		// violation. The loser rolls back and reports already_confirmed.
		if pkgdb.IsDuplicateKeyErr(err) {
			attempt, ferr := s.repo.FindByIDForUser(ctx, s.db, userID, orderID, paymentID)
			if ferr == nil && attempt != nil {
				return domain.ConfirmResult{
					Status:  domain.ConfirmStatusAlreadyConfirmed,
					Attempt: *attempt,
				}, nil
			}
		}
		return domain.ConfirmResult{}, err
	}

	if result.Status == domain.ConfirmStatusConfirmed {
		s.log.Info("payment confirmed",
			zap.String("order_id", orderID.String()),
			zap.String("payment_id", paymentID.String()),
		)
		s.notifyConfirmed(userID, req)
	}
	return result, nil
}

// Fail marks the attempt FAILED and the order PAYMENT_FAILED. If the payment
// was already confirmed the event is ignored.
func (s *ConfirmationService) Fail(ctx context.Context, req domain.ConfirmRequest) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return orderdomain.ErrInvalidUser
	}
	orderID, err := snowflake.ParseString(strings.TrimSpace(req.OrderID))
	if err != nil {
		return orderdomain.ErrNotFound
	}
	paymentID, err := snowflake.ParseString(strings.TrimSpace(req.PaymentID))
	if err != nil {
		return domain.ErrAttemptNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := s.repo.FindByIDForUser(ctx, tx, userID, orderID, paymentID)
		if err != nil {
			return err
		}
		if attempt == nil {
			return domain.ErrAttemptNotFound
		}
		if attempt.Status == domain.AttemptStatusPaid {
			return nil
		}
		existing, err := s.fulfillRepo.CountByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		if err := s.repo.MarkFailed(ctx, tx, attempt.ID); err != nil {
			return err
		}
		return s.orderRepo.UpdateStatus(ctx, tx, orderID, orderdomain.OrderStatusPaymentFailed)
	})
}

// buildRequests joins the order items with their catalog packages, producing
// one fulfillment request per item.
func (s *ConfirmationService) buildRequests(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) ([]fulfillmentdomain.Request, error) {
	items, err := s.orderRepo.FindItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.PackageID)
	}
	packages, err := s.catalogRepo.FindByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*catalogdomain.Package, len(packages))
	for _, pkg := range packages {
		byID[pkg.ID] = pkg
	}

	requests := make([]fulfillmentdomain.Request, 0, len(items))
	for _, item := range items {
		pkg, found := byID[item.PackageID]
		if !found {
			return nil, catalogdomain.ErrPackageNotFound
		}
		requests = append(requests, fulfillmentdomain.Request{
			OrderItemID:       item.ID,
			Provider:          pkg.Provider,
			ExternalPackageID: pkg.ExternalID,
			Quantity:          item.Quantity,
			PackageType:       pkg.Type,
			DataAmountMB:      pkg.DataAmountMB,
			VoiceMinutes:      pkg.VoiceMinutes,
			TextMessages:      pkg.TextMessages,
			ValidityDays:      pkg.ValidityDays,
			PriceAmount:       pkg.RetailAmount * int64(item.Quantity),
			NetPriceAmount:    pkg.NetAmount * int64(item.Quantity),
			StartDate:         item.StartDate,
		})
	}
	return requests, nil
}

func (s *ConfirmationService) notifyConfirmed(userID snowflake.ID, req domain.ConfirmRequest) {
	s.dispatcher.Submit("payment-confirmed-sse", func(ctx context.Context) error {
		s.hub.Publish(userID, sse.Event{
			Type:        sse.EventPaymentConfirmed,
			OrderID:     req.OrderID,
			PaymentID:   req.PaymentID,
			ReferenceID: req.ReferenceID,
		})
		return nil
	})
}
