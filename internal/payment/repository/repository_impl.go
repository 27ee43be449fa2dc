package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, attempt *domain.PaymentAttempt) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_attempts (id, order_id, user_id, provider, method, status, amount, currency, provider_ref, redirect_url, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.OrderID,
		attempt.UserID,
		attempt.Provider,
		attempt.Method,
		attempt.Status,
		attempt.Amount,
		attempt.Currency,
		attempt.ProviderRef,
		attempt.RedirectURL,
		attempt.Metadata,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	).Error
}

func (r *repo) FindByIDForUser(ctx context.Context, db *gorm.DB, userID, orderID, id snowflake.ID) (*domain.PaymentAttempt, error) {
	var attempt domain.PaymentAttempt
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payment_attempts WHERE user_id = ? AND order_id = ? AND id = ?`,
		userID,
		orderID,
		id,
	).Scan(&attempt).Error
	if err != nil {
		return nil, err
	}
	if attempt.ID == 0 {
		return nil, nil
	}
	return &attempt, nil
}

func (r *repo) UpdateSession(ctx context.Context, db *gorm.DB, attempt *domain.PaymentAttempt) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_attempts SET provider_ref = ?, redirect_url = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		attempt.ProviderRef,
		attempt.RedirectURL,
		attempt.Metadata,
		time.Now().UTC(),
		attempt.ID,
	).Error
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, providerRef string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_attempts SET status = ?, provider_ref = ?, updated_at = ? WHERE id = ?`,
		domain.AttemptStatusPaid,
		providerRef,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_attempts SET status = ?, updated_at = ? WHERE id = ?`,
		domain.AttemptStatusFailed,
		time.Now().UTC(),
		id,
	).Error
}
