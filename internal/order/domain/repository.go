package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	FindByIDForUser(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Order, error)
	FindItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status OrderStatus) error
	UpdateTotal(ctx context.Context, db *gorm.DB, id snowflake.ID, total int64) error
	LinkItemSim(ctx context.Context, db *gorm.DB, itemID, simID snowflake.ID) error
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]*Order, error)
}
