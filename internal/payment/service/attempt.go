package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/simroam/simroam/internal/order/domain"
	"github.com/simroam/simroam/internal/payment/adapters"
	"github.com/simroam/simroam/internal/payment/domain"
	"github.com/simroam/simroam/internal/providers/users"
	"github.com/simroam/simroam/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttemptParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	OrderRepo orderdomain.Repository
	Adapters  *adapters.Registry
	Users     users.Directory
}

type AttemptService struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	orderRepo orderdomain.Repository
	adapters  *adapters.Registry
	users     users.Directory
}

func NewAttemptService(p AttemptParams) domain.AttemptService {
	return &AttemptService{
		db:        p.DB,
		log:       p.Log.Named("payment.attempt"),
		genID:     p.GenID,
		repo:      p.Repo,
		orderRepo: p.OrderRepo,
		adapters:  p.Adapters,
		users:     p.Users,
	}
}

// Create records a payment attempt and initiates the gateway session. Adapter
// failures do not fail attempt creation: the attempt row is committed and
// returned so the client can retry initiation instead of orphaning the order
// in PROCESSING_PAYMENT with no attempt record.
func (s *AttemptService) Create(ctx context.Context, req domain.CreateAttemptRequest) (domain.PaymentAttempt, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.PaymentAttempt{}, orderdomain.ErrInvalidUser
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if !s.adapters.MethodAllowed(provider, method) {
		return domain.PaymentAttempt{}, domain.ErrInvalidPaymentMethod
	}
	adapter, err := s.adapters.Adapter(provider)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}

	orderID, err := snowflake.ParseString(strings.TrimSpace(req.OrderID))
	if err != nil {
		return domain.PaymentAttempt{}, orderdomain.ErrNotFound
	}

	var attempt domain.PaymentAttempt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDForUser(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrNotFound
		}

		now := time.Now().UTC()
		attempt = domain.PaymentAttempt{
			ID:        s.genID.Generate(),
			OrderID:   order.ID,
			UserID:    userID,
			Provider:  provider,
			Method:    method,
			Status:    domain.AttemptStatusInitiated,
			Amount:    order.TotalAmount,
			Currency:  order.Currency,
			Metadata:  datatypes.JSONMap{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, &attempt); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, orderdomain.OrderStatusProcessingPayment); err != nil {
			return err
		}

		email, err := s.users.EmailByID(ctx, userID)
		if err != nil {
			s.log.Warn("user lookup failed, initiating without email",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}

		session, initErr := adapter.InitOneTimePayment(ctx, domain.InitPaymentRequest{
			OrderID:   order.ID,
			PaymentID: attempt.ID,
			UserID:    userID,
			Email:     email,
			Amount:    order.TotalAmount,
			Currency:  order.Currency,
			Method:    method,
		})
		if initErr != nil {
			s.log.Warn("payment initiation failed, attempt kept for retry",
				zap.String("order_id", order.ID.String()),
				zap.String("payment_id", attempt.ID.String()),
				zap.String("provider", provider),
				zap.Error(initErr),
			)
			return nil
		}

		attempt.ProviderRef = session.ProviderRef
		attempt.RedirectURL = session.RedirectURL
		if len(session.Metadata) > 0 {
			attempt.Metadata = datatypes.JSONMap(session.Metadata)
		}
		return s.repo.UpdateSession(ctx, tx, &attempt)
	})
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	return attempt, nil
}
