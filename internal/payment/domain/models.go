package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptStatusInitiated      AttemptStatus = "INITIATED"
	AttemptStatusFailed         AttemptStatus = "FAILED"
	AttemptStatusRequiresAction AttemptStatus = "REQUIRES_ACTION"
	AttemptStatusPaid           AttemptStatus = "PAID"
)

// PaymentAttempt is one try at collecting payment for an order. Multiple
// attempts may exist per order; the confirmation idempotency gate, not this
// model, prevents double fulfillment.
type PaymentAttempt struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrderID     snowflake.ID      `gorm:"not null;index" json:"order_id"`
	UserID      snowflake.ID      `gorm:"not null;index" json:"user_id"`
	Provider    string            `gorm:"not null" json:"provider"`
	Method      string            `gorm:"not null" json:"method"`
	Status      AttemptStatus     `gorm:"not null" json:"status"`
	Amount      int64             `gorm:"not null" json:"amount"`
	Currency    string            `gorm:"not null" json:"currency"`
	ProviderRef string            `json:"provider_ref,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}
