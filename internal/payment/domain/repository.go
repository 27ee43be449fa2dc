package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, attempt *PaymentAttempt) error
	FindByIDForUser(ctx context.Context, db *gorm.DB, userID, orderID, id snowflake.ID) (*PaymentAttempt, error)
	UpdateSession(ctx context.Context, db *gorm.DB, attempt *PaymentAttempt) error
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, providerRef string) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
