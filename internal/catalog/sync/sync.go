package sync

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/internal/catalog/domain"
	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/providers/wholesale"
	"github.com/simroam/simroam/internal/ratelimit"
	"github.com/simroam/simroam/internal/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Client wholesale.Client
	Cfg    config.Config
}

// Syncer walks the wholesaler catalog page by page and upserts packages.
// Catalog reads are the most rate-sensitive endpoint of the wholesaler, so
// the pacer is pinned to one in-flight call with a fixed spacing.
type Syncer struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	client wholesale.Client
	pacer  *ratelimit.Pacer
	policy retry.Policy
	limit  int
}

func New(p Params) *Syncer {
	return &Syncer{
		db:     p.DB,
		log:    p.Log.Named("catalog.sync"),
		genID:  p.GenID,
		repo:   p.Repo,
		client: p.Client,
		pacer:  ratelimit.NewPacer(1, p.Cfg.CatalogSync.MinInterval),
		policy: retry.Policy{MaxRetries: p.Cfg.CatalogSync.MaxRetries},
		limit:  p.Cfg.CatalogSync.PageSize,
	}
}

// Sync fetches every catalog page and upserts the packages it finds. Returns
// the number of packages written.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	synced := 0
	page := 1
	for {
		var resp wholesale.ListPackagesResponse
		err := s.pacer.Do(ctx, func(ctx context.Context) error {
			return retry.Do(ctx, s.policy, func(ctx context.Context) error {
				var listErr error
				resp, listErr = s.client.ListPackages(ctx, wholesale.ListPackagesRequest{
					Page:  page,
					Limit: s.limit,
				})
				return listErr
			})
		})
		if err != nil {
			return synced, err
		}

		for _, item := range resp.Items {
			if err := s.upsert(ctx, item); err != nil {
				return synced, err
			}
			synced++
		}

		if resp.LastPage == 0 || page >= resp.LastPage || len(resp.Items) == 0 {
			break
		}
		page++
	}

	s.log.Info("catalog sync finished", zap.Int("packages", synced))
	return synced, nil
}

// RunForever syncs once at startup, then on every interval tick until ctx is
// cancelled. Failures are logged and retried on the next tick.
func (s *Syncer) RunForever(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("catalog sync failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Syncer) upsert(ctx context.Context, item wholesale.PackageItem) error {
	now := time.Now().UTC()
	return s.repo.Upsert(ctx, s.db, &domain.Package{
		ID:           s.genID.Generate(),
		Provider:     wholesale.ProviderAiralo,
		ExternalID:   item.ExternalID,
		Title:        item.Title,
		Type:         item.Type,
		Country:      item.Country,
		Operator:     item.Operator,
		DataAmountMB: item.DataAmountMB,
		VoiceMinutes: item.VoiceMinutes,
		TextMessages: item.TextMessages,
		ValidityDays: item.ValidityDays,
		RetailAmount: item.PriceCents,
		NetAmount:    item.NetPriceCents,
		Currency:     item.Currency,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
