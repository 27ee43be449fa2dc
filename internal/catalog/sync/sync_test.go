package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/internal/catalog/domain"
	"github.com/simroam/simroam/internal/catalog/repository"
	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/providers/wholesale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeCatalogClient struct {
	pages     [][]wholesale.PackageItem
	listCalls int
}

func (f *fakeCatalogClient) Authenticate(ctx context.Context) (wholesale.Token, error) {
	return wholesale.Token{AccessToken: "token", ExpiresIn: 3600, IssuedAt: time.Now()}, nil
}

func (f *fakeCatalogClient) ListPackages(ctx context.Context, req wholesale.ListPackagesRequest) (wholesale.ListPackagesResponse, error) {
	f.listCalls++
	if req.Page < 1 || req.Page > len(f.pages) {
		return wholesale.ListPackagesResponse{Page: req.Page, LastPage: len(f.pages)}, nil
	}
	return wholesale.ListPackagesResponse{
		Items:    f.pages[req.Page-1],
		Page:     req.Page,
		LastPage: len(f.pages),
	}, nil
}

func (f *fakeCatalogClient) CreateOrder(ctx context.Context, req wholesale.CreateOrderRequest) (wholesale.CreateOrderResponse, error) {
	return wholesale.CreateOrderResponse{}, nil
}

func (f *fakeCatalogClient) FetchUsage(ctx context.Context, iccid string) (wholesale.Usage, error) {
	return wholesale.Usage{}, nil
}

func item(id string, priceCents int64) wholesale.PackageItem {
	return wholesale.PackageItem{
		ExternalID:    id,
		Title:         "Pack " + id,
		Type:          "sim",
		Country:       "FR",
		DataAmountMB:  1024,
		ValidityDays:  7,
		PriceCents:    priceCents,
		NetPriceCents: priceCents / 2,
		Currency:      "USD",
	}
}

func newTestSyncer(t *testing.T, client wholesale.Client) (*Syncer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Package{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		CatalogSync: config.CatalogSyncConfig{PageSize: 2, MaxRetries: 1},
	}
	return New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
		Client: client,
		Cfg:    cfg,
	}), db
}

func TestSync_WalksAllPages(t *testing.T) {
	client := &fakeCatalogClient{pages: [][]wholesale.PackageItem{
		{item("a", 500), item("b", 600)},
		{item("c", 700)},
	}}
	syncer, db := newTestSyncer(t, client)

	count, err := syncer.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, client.listCalls)

	var stored int64
	require.NoError(t, db.Model(&domain.Package{}).Count(&stored).Error)
	assert.Equal(t, int64(3), stored)
}

func TestSync_UpsertRefreshesPrices(t *testing.T) {
	client := &fakeCatalogClient{pages: [][]wholesale.PackageItem{{item("a", 500)}}}
	syncer, db := newTestSyncer(t, client)

	_, err := syncer.Sync(context.Background())
	require.NoError(t, err)

	client.pages = [][]wholesale.PackageItem{{item("a", 900)}}
	_, err = syncer.Sync(context.Background())
	require.NoError(t, err)

	var stored []domain.Package
	require.NoError(t, db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(900), stored[0].RetailAmount)
}
