package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	catalogdomain "github.com/simroam/simroam/internal/catalog/domain"
	catalogrepository "github.com/simroam/simroam/internal/catalog/repository"
	"github.com/simroam/simroam/internal/config"
	fulfillmentdomain "github.com/simroam/simroam/internal/fulfillment/domain"
	fulfillmentrepository "github.com/simroam/simroam/internal/fulfillment/repository"
	fulfillmentservice "github.com/simroam/simroam/internal/fulfillment/service"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/notify"
	"github.com/simroam/simroam/internal/notify/sse"
	orderdomain "github.com/simroam/simroam/internal/order/domain"
	orderrepository "github.com/simroam/simroam/internal/order/repository"
	"github.com/simroam/simroam/internal/payment/domain"
	"github.com/simroam/simroam/internal/payment/repository"
	"github.com/simroam/simroam/internal/providers/wholesale"
	"github.com/simroam/simroam/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeWholesaleClient struct {
	orderCalls atomic.Int64
	failOrders bool
}

func (f *fakeWholesaleClient) Authenticate(ctx context.Context) (wholesale.Token, error) {
	return wholesale.Token{AccessToken: "token", ExpiresIn: 3600, IssuedAt: time.Now()}, nil
}

func (f *fakeWholesaleClient) ListPackages(ctx context.Context, req wholesale.ListPackagesRequest) (wholesale.ListPackagesResponse, error) {
	return wholesale.ListPackagesResponse{}, nil
}

func (f *fakeWholesaleClient) CreateOrder(ctx context.Context, req wholesale.CreateOrderRequest) (wholesale.CreateOrderResponse, error) {
	if f.failOrders {
		return wholesale.CreateOrderResponse{}, wholesale.ErrOrderRejected
	}
	n := f.orderCalls.Add(1)
	return wholesale.CreateOrderResponse{Accepted: true, RequestID: fmt.Sprintf("req-%d", n)}, nil
}

func (f *fakeWholesaleClient) FetchUsage(ctx context.Context, iccid string) (wholesale.Usage, error) {
	return wholesale.Usage{}, nil
}

type confirmFixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	client  *fakeWholesaleClient
	svc     domain.ConfirmationService
	metrics *metrics.Metrics
	userID  snowflake.ID
	order   orderdomain.Order
	items   []orderdomain.OrderItem
	attempt domain.PaymentAttempt
}

func setupConfirmDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Package{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&domain.PaymentAttempt{},
		&fulfillmentdomain.ProviderOrder{},
		&fulfillmentdomain.Sim{},
		&fulfillmentdomain.PackageHistory{},
	))
	return db
}

func newConfirmFixture(t *testing.T) *confirmFixture {
	t.Helper()
	db := setupConfirmDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	client := &fakeWholesaleClient{}
	log := zap.NewNop()
	m := metrics.New()
	fulfillRepo := fulfillmentrepository.Provide()
	fulfillSvc := fulfillmentservice.New(fulfillmentservice.Params{
		Log:     log,
		GenID:   node,
		Repo:    fulfillRepo,
		Client:  client,
		Cfg:     config.Config{},
		Metrics: m,
	})

	dispatcher := notify.NewDispatcher(log)
	t.Cleanup(dispatcher.Close)

	svc := NewConfirmationService(ConfirmParams{
		DB:          db,
		Log:         log,
		Repo:        repository.Provide(),
		OrderRepo:   orderrepository.Provide(),
		CatalogRepo: catalogrepository.Provide(),
		Fulfillment: fulfillSvc,
		FulfillRepo: fulfillRepo,
		Hub:         sse.NewHub(),
		Dispatcher:  dispatcher,
	})

	f := &confirmFixture{
		db:      db,
		node:    node,
		client:  client,
		svc:     svc,
		metrics: m,
		userID:  node.Generate(),
	}
	f.seedPaidableOrder(t, 2)
	return f
}

// seedPaidableOrder creates an order with n items in PROCESSING_PAYMENT plus
// an INITIATED attempt, the state right before a gateway confirmation lands.
func (f *confirmFixture) seedPaidableOrder(t *testing.T, itemCount int) {
	t.Helper()
	now := time.Now().UTC()

	f.order = orderdomain.Order{
		ID:          f.node.Generate(),
		Number:      "ORD-TEST",
		UserID:      f.userID,
		TotalAmount: 0,
		Currency:    "USD",
		Status:      orderdomain.OrderStatusProcessingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var total int64
	f.items = nil
	for i := 0; i < itemCount; i++ {
		pkg := catalogdomain.Package{
			ID:           f.node.Generate(),
			Provider:     "airalo",
			ExternalID:   fmt.Sprintf("pkg-%d", i),
			Title:        "Test Package",
			Type:         "sim",
			DataAmountMB: 1024,
			ValidityDays: 7,
			RetailAmount: 500,
			NetAmount:    250,
			Currency:     "USD",
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, f.db.Create(&pkg).Error)
		item := orderdomain.OrderItem{
			ID:         f.node.Generate(),
			OrderID:    f.order.ID,
			PackageID:  pkg.ID,
			Quantity:   1,
			UnitAmount: pkg.RetailAmount,
			CreatedAt:  now,
		}
		f.items = append(f.items, item)
		total += pkg.RetailAmount
	}
	f.order.TotalAmount = total
	require.NoError(t, f.db.Create(&f.order).Error)
	require.NoError(t, f.db.Create(&f.items).Error)

	f.attempt = domain.PaymentAttempt{
		ID:        f.node.Generate(),
		OrderID:   f.order.ID,
		UserID:    f.userID,
		Provider:  "paystack",
		Method:    "card",
		Status:    domain.AttemptStatusInitiated,
		Amount:    total,
		Currency:  "USD",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(&f.attempt).Error)
}

func (f *confirmFixture) ctx() context.Context {
	return usercontext.WithUserID(context.Background(), f.userID)
}

func (f *confirmFixture) confirmRequest() domain.ConfirmRequest {
	return domain.ConfirmRequest{
		OrderID:     f.order.ID.String(),
		PaymentID:   f.attempt.ID.String(),
		ReferenceID: "ref-123",
	}
}

func TestConfirm_CreatesOneProviderOrderPerItem(t *testing.T) {
	f := newConfirmFixture(t)

	result, err := f.svc.Confirm(f.ctx(), f.confirmRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmStatusConfirmed, result.Status)
	assert.Equal(t, domain.AttemptStatusPaid, result.Attempt.Status)

	var order orderdomain.Order
	require.NoError(t, f.db.First(&order, "id = ?", f.order.ID).Error)
	assert.Equal(t, orderdomain.OrderStatusPaid, order.Status)

	var providerOrders []fulfillmentdomain.ProviderOrder
	require.NoError(t, f.db.Where("order_id = ?", f.order.ID).Find(&providerOrders).Error)
	require.Len(t, providerOrders, 2)
	for _, po := range providerOrders {
		assert.Equal(t, fulfillmentdomain.ProviderOrderStatusPending, po.Status)
		assert.NotEmpty(t, po.ExternalRequestID)
	}
	assert.Equal(t, int64(2), f.client.orderCalls.Load())
	assert.Equal(t, float64(2), testutil.ToFloat64(
		f.metrics.ProviderOrders.WithLabelValues("airalo", string(fulfillmentdomain.ProviderOrderStatusPending))))
}

func TestConfirm_ReplayIsIdempotent(t *testing.T) {
	f := newConfirmFixture(t)

	first, err := f.svc.Confirm(f.ctx(), f.confirmRequest())
	require.NoError(t, err)
	require.Equal(t, domain.ConfirmStatusConfirmed, first.Status)

	second, err := f.svc.Confirm(f.ctx(), f.confirmRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmStatusAlreadyConfirmed, second.Status)

	var count int64
	require.NoError(t, f.db.Model(&fulfillmentdomain.ProviderOrder{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(2), f.client.orderCalls.Load())
}

// gateBlindRepo reports zero provider orders, the state a racing
// confirmation reads before the winner commits. The embedded repository
// handles everything else, so the insert still hits the unique index.
type gateBlindRepo struct {
	fulfillmentdomain.Repository
}

func (gateBlindRepo) CountByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error) {
	return 0, nil
}

func TestConfirm_ConcurrentDuplicateReportsAlreadyConfirmed(t *testing.T) {
	f := newConfirmFixture(t)

	// The winning confirmation already committed a provider order for the
	// first item.
	now := time.Now().UTC()
	winner := fulfillmentdomain.ProviderOrder{
		ID:                f.node.Generate(),
		OrderID:           f.order.ID,
		OrderItemID:       f.items[0].ID,
		Provider:          "airalo",
		ExternalRequestID: "req-winner",
		Status:            fulfillmentdomain.ProviderOrderStatusPending,
		PackageRef:        "pkg-0",
		Quantity:          1,
		Currency:          "USD",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.db.Create(&winner).Error)

	log := zap.NewNop()
	blind := gateBlindRepo{fulfillmentrepository.Provide()}
	fulfillSvc := fulfillmentservice.New(fulfillmentservice.Params{
		Log:     log,
		GenID:   f.node,
		Repo:    blind,
		Client:  f.client,
		Cfg:     config.Config{},
		Metrics: f.metrics,
	})
	dispatcher := notify.NewDispatcher(log)
	t.Cleanup(dispatcher.Close)
	svc := NewConfirmationService(ConfirmParams{
		DB:          f.db,
		Log:         log,
		Repo:        repository.Provide(),
		OrderRepo:   orderrepository.Provide(),
		CatalogRepo: catalogrepository.Provide(),
		Fulfillment: fulfillSvc,
		FulfillRepo: blind,
		Hub:         sse.NewHub(),
		Dispatcher:  dispatcher,
	})

	result, err := svc.Confirm(f.ctx(), f.confirmRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmStatusAlreadyConfirmed, result.Status)

	// The losing transaction rolled back completely.
	var attempt domain.PaymentAttempt
	require.NoError(t, f.db.First(&attempt, "id = ?", f.attempt.ID).Error)
	assert.Equal(t, domain.AttemptStatusInitiated, attempt.Status)

	var count int64
	require.NoError(t, f.db.Model(&fulfillmentdomain.ProviderOrder{}).
		Where("order_id = ?", f.order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConfirm_AmountMismatchRejected(t *testing.T) {
	f := newConfirmFixture(t)

	wrong := f.order.TotalAmount + 1
	req := f.confirmRequest()
	req.Amount = &wrong

	_, err := f.svc.Confirm(f.ctx(), req)
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)

	var count int64
	require.NoError(t, f.db.Model(&fulfillmentdomain.ProviderOrder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConfirm_WholesalerRejectionRollsBack(t *testing.T) {
	f := newConfirmFixture(t)
	f.client.failOrders = true

	_, err := f.svc.Confirm(f.ctx(), f.confirmRequest())
	require.ErrorIs(t, err, wholesale.ErrOrderRejected)

	var attempt domain.PaymentAttempt
	require.NoError(t, f.db.First(&attempt, "id = ?", f.attempt.ID).Error)
	assert.Equal(t, domain.AttemptStatusInitiated, attempt.Status)

	var order orderdomain.Order
	require.NoError(t, f.db.First(&order, "id = ?", f.order.ID).Error)
	assert.Equal(t, orderdomain.OrderStatusProcessingPayment, order.Status)

	var count int64
	require.NoError(t, f.db.Model(&fulfillmentdomain.ProviderOrder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConfirm_WrongUserRejected(t *testing.T) {
	f := newConfirmFixture(t)

	otherCtx := usercontext.WithUserID(context.Background(), f.node.Generate())
	_, err := f.svc.Confirm(otherCtx, f.confirmRequest())
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)
}

func TestFail_MarksAttemptAndOrderFailed(t *testing.T) {
	f := newConfirmFixture(t)

	require.NoError(t, f.svc.Fail(f.ctx(), f.confirmRequest()))

	var attempt domain.PaymentAttempt
	require.NoError(t, f.db.First(&attempt, "id = ?", f.attempt.ID).Error)
	assert.Equal(t, domain.AttemptStatusFailed, attempt.Status)

	var order orderdomain.Order
	require.NoError(t, f.db.First(&order, "id = ?", f.order.ID).Error)
	assert.Equal(t, orderdomain.OrderStatusPaymentFailed, order.Status)
}

func TestFail_DoesNotDowngradeConfirmedPayment(t *testing.T) {
	f := newConfirmFixture(t)

	_, err := f.svc.Confirm(f.ctx(), f.confirmRequest())
	require.NoError(t, err)

	require.NoError(t, f.svc.Fail(f.ctx(), f.confirmRequest()))

	var order orderdomain.Order
	require.NoError(t, f.db.First(&order, "id = ?", f.order.ID).Error)
	assert.Equal(t, orderdomain.OrderStatusPaid, order.Status)
}
