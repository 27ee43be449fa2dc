package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/simroam/simroam/internal/catalog/domain"
	catalogrepository "github.com/simroam/simroam/internal/catalog/repository"
	"github.com/simroam/simroam/internal/order/domain"
	"github.com/simroam/simroam/internal/order/repository"
	"github.com/simroam/simroam/internal/ordernum"
	"github.com/simroam/simroam/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Package{},
		&domain.Order{},
		&domain.OrderItem{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, node *snowflake.Node) domain.Service {
	t.Helper()
	return New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Numbers:     ordernum.NewGenerator(node),
		Repo:        repository.Provide(),
		CatalogRepo: catalogrepository.Provide(),
	})
}

func seedPackage(t *testing.T, db *gorm.DB, node *snowflake.Node, retail int64) catalogdomain.Package {
	t.Helper()
	now := time.Now().UTC()
	pkg := catalogdomain.Package{
		ID:           node.Generate(),
		Provider:     "airalo",
		ExternalID:   fmt.Sprintf("pkg-%d", node.Generate()),
		Title:        "Europe 5GB",
		Type:         "sim",
		DataAmountMB: 5120,
		ValidityDays: 30,
		RetailAmount: retail,
		NetAmount:    retail / 2,
		Currency:     "USD",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.Create(&pkg).Error)
	return pkg
}

func TestCreateOrder_TotalFromPersistedPrices(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := newTestService(t, db, node)

	pkgA := seedPackage(t, db, node, 500)
	pkgB := seedPackage(t, db, node, 350)

	userID := node.Generate()
	ctx := usercontext.WithUserID(context.Background(), userID)

	order, err := svc.Create(ctx, domain.CreateOrderRequest{
		Currency: "usd",
		Items: []domain.CartItem{
			{PackageID: pkgA.ID.String(), Quantity: 2},
			{PackageID: pkgB.ID.String(), Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1350), order.TotalAmount)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.NotEmpty(t, order.Number)

	var items []domain.OrderItem
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 2)
	for _, item := range items {
		switch item.PackageID {
		case pkgA.ID:
			assert.Equal(t, int64(500), item.UnitAmount)
			assert.Equal(t, 2, item.Quantity)
		case pkgB.ID:
			assert.Equal(t, int64(350), item.UnitAmount)
			assert.Equal(t, 1, item.Quantity)
		default:
			t.Fatalf("unexpected package id %s", item.PackageID)
		}
	}
}

func TestCreateOrder_MergesDuplicateCartLines(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := newTestService(t, db, node)

	pkg := seedPackage(t, db, node, 200)
	ctx := usercontext.WithUserID(context.Background(), node.Generate())

	order, err := svc.Create(ctx, domain.CreateOrderRequest{
		Currency: "USD",
		Items: []domain.CartItem{
			{PackageID: pkg.ID.String(), Quantity: 1},
			{PackageID: pkg.ID.String(), Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600), order.TotalAmount)

	var count int64
	require.NoError(t, db.Model(&domain.OrderItem{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateOrder_Validation(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := newTestService(t, db, node)

	pkg := seedPackage(t, db, node, 100)
	ctx := usercontext.WithUserID(context.Background(), node.Generate())

	_, err = svc.Create(ctx, domain.CreateOrderRequest{Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	_, err = svc.Create(ctx, domain.CreateOrderRequest{
		Currency: "dollars",
		Items:    []domain.CartItem{{PackageID: pkg.ID.String(), Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = svc.Create(ctx, domain.CreateOrderRequest{
		Currency: "USD",
		Items:    []domain.CartItem{{PackageID: pkg.ID.String(), Quantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.Create(context.Background(), domain.CreateOrderRequest{
		Currency: "USD",
		Items:    []domain.CartItem{{PackageID: pkg.ID.String(), Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestCreateOrder_UnknownPackage(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := newTestService(t, db, node)

	ctx := usercontext.WithUserID(context.Background(), node.Generate())
	_, err = svc.Create(ctx, domain.CreateOrderRequest{
		Currency: "USD",
		Items:    []domain.CartItem{{PackageID: node.Generate().String(), Quantity: 1}},
	})
	assert.ErrorIs(t, err, catalogdomain.ErrPackageNotFound)

	var count int64
	require.NoError(t, db.Model(&domain.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetOrder_ScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := newTestService(t, db, node)

	pkg := seedPackage(t, db, node, 100)
	owner := node.Generate()
	ctx := usercontext.WithUserID(context.Background(), owner)

	order, err := svc.Create(ctx, domain.CreateOrderRequest{
		Currency: "USD",
		Items:    []domain.CartItem{{PackageID: pkg.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, domain.GetOrderRequest{ID: order.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Len(t, got.Items, 1)

	otherCtx := usercontext.WithUserID(context.Background(), node.Generate())
	_, err = svc.GetByID(otherCtx, domain.GetOrderRequest{ID: order.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
