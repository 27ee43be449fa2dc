package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/internal/fulfillment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertProviderOrder(ctx context.Context, db *gorm.DB, po *domain.ProviderOrder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO provider_orders (id, order_id, order_item_id, provider, external_request_id, external_order_id, status,
		 package_ref, quantity, package_type, validity_days, data_amount_mb, voice_minutes, text_messages,
		 price_amount, net_price_amount, currency, start_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		po.ID,
		po.OrderID,
		po.OrderItemID,
		po.Provider,
		po.ExternalRequestID,
		po.ExternalOrderID,
		po.Status,
		po.PackageRef,
		po.Quantity,
		po.PackageType,
		po.ValidityDays,
		po.DataAmountMB,
		po.VoiceMinutes,
		po.TextMessages,
		po.PriceAmount,
		po.NetPriceAmount,
		po.Currency,
		po.StartDate,
		po.CreatedAt,
		po.UpdatedAt,
	).Error
}

func (r *repo) CountByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ProviderOrder{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

func (r *repo) FindByRequestID(ctx context.Context, db *gorm.DB, provider, externalRequestID string) (*domain.ProviderOrder, error) {
	var po domain.ProviderOrder
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM provider_orders WHERE provider = ? AND external_request_id = ?`,
		provider,
		externalRequestID,
	).Scan(&po).Error
	if err != nil {
		return nil, err
	}
	if po.ID == 0 {
		return nil, nil
	}
	return &po, nil
}

// CompleteProviderOrder writes the final wholesaler state. The status guard
// makes the external order id an at-most-once write.
func (r *repo) CompleteProviderOrder(ctx context.Context, db *gorm.DB, po *domain.ProviderOrder) error {
	return db.WithContext(ctx).Exec(
		`UPDATE provider_orders
		 SET external_order_id = ?, status = ?, validity_days = ?, price_amount = ?, net_price_amount = ?, updated_at = ?
		 WHERE id = ? AND status <> ?`,
		po.ExternalOrderID,
		domain.ProviderOrderStatusCompleted,
		po.ValidityDays,
		po.PriceAmount,
		po.NetPriceAmount,
		time.Now().UTC(),
		po.ID,
		domain.ProviderOrderStatusCompleted,
	).Error
}

func (r *repo) InsertSim(ctx context.Context, db *gorm.DB, sim *domain.Sim) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sims (id, provider_order_id, user_id, name, iccid, lpa, matching_id, qr_code, qr_code_url, provider,
		 status, data_total_mb, data_remaining_mb, voice_total, voice_remaining, text_total, text_remaining,
		 last_usage_fetch_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sim.ID,
		sim.ProviderOrderID,
		sim.UserID,
		sim.Name,
		sim.ICCID,
		sim.LPA,
		sim.MatchingID,
		sim.QRCode,
		sim.QRCodeURL,
		sim.Provider,
		sim.Status,
		sim.DataTotalMB,
		sim.DataRemainingMB,
		sim.VoiceTotal,
		sim.VoiceRemaining,
		sim.TextTotal,
		sim.TextRemaining,
		sim.LastUsageFetchAt,
		sim.CreatedAt,
		sim.UpdatedAt,
	).Error
}

func (r *repo) InsertPackageHistory(ctx context.Context, db *gorm.DB, history *domain.PackageHistory) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO package_histories (id, sim_id, action, package_ref, data_amount_mb, validity_days, start_at, end_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		history.ID,
		history.SimID,
		history.Action,
		history.PackageRef,
		history.DataAmountMB,
		history.ValidityDays,
		history.StartAt,
		history.EndAt,
		history.CreatedAt,
	).Error
}

func (r *repo) FindPollableSims(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]domain.Sim, error) {
	var sims []domain.Sim
	err := db.WithContext(ctx).
		Model(&domain.Sim{}).
		Where("status IN ?", domain.PollableStatuses).
		Where("id > ?", afterID).
		Order("id asc").
		Limit(limit).
		Find(&sims).Error
	if err != nil {
		return nil, err
	}
	return sims, nil
}

func (r *repo) UpdateSimUsage(ctx context.Context, db *gorm.DB, simID snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.Sim{}).
		Where("id = ?", simID).
		Updates(fields).Error
}

func (r *repo) FindSimsByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Sim, error) {
	var sims []domain.Sim
	err := db.WithContext(ctx).Raw(
		`SELECT sims.* FROM sims
		 JOIN provider_orders ON provider_orders.id = sims.provider_order_id
		 WHERE provider_orders.order_id = ?
		 ORDER BY sims.id ASC`,
		orderID,
	).Scan(&sims).Error
	if err != nil {
		return nil, err
	}
	return sims, nil
}
