package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertProviderOrder(ctx context.Context, db *gorm.DB, po *ProviderOrder) error
	CountByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error)
	FindByRequestID(ctx context.Context, db *gorm.DB, provider, externalRequestID string) (*ProviderOrder, error)
	CompleteProviderOrder(ctx context.Context, db *gorm.DB, po *ProviderOrder) error

	InsertSim(ctx context.Context, db *gorm.DB, sim *Sim) error
	InsertPackageHistory(ctx context.Context, db *gorm.DB, history *PackageHistory) error

	// FindPollableSims returns sims in a pollable state with id > afterID,
	// ascending, at most limit rows. The id cursor keeps the walk stable
	// under concurrent updates.
	FindPollableSims(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]Sim, error)
	UpdateSimUsage(ctx context.Context, db *gorm.DB, simID snowflake.ID, fields map[string]any) error
	FindSimsByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Sim, error)
}
