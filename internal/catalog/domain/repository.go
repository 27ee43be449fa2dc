package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Package, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Package, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*Package, error)
	Upsert(ctx context.Context, db *gorm.DB, pkg *Package) error
}
