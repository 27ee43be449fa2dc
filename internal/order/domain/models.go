package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "PENDING"
	OrderStatusProcessingPayment OrderStatus = "PROCESSING_PAYMENT"
	OrderStatusPaid              OrderStatus = "PAID"
	OrderStatusCompleted         OrderStatus = "COMPLETED"
	OrderStatusPaymentFailed     OrderStatus = "PAYMENT_FAILED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

// Order is a customer purchase. TotalAmount is always recomputed server-side
// from persisted package prices; client-supplied totals are never trusted.
// Orders are never deleted, only transitioned.
type Order struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Number      string       `gorm:"not null;uniqueIndex" json:"number"`
	UserID      snowflake.ID `gorm:"not null;index" json:"user_id"`
	TotalAmount int64        `gorm:"not null" json:"total_amount"`
	Currency    string       `gorm:"not null" json:"currency"`
	Status      OrderStatus  `gorm:"not null" json:"status"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// OrderItem is immutable once created except for the SIM linkage set at
// fulfillment time. UnitAmount snapshots the package price at purchase.
type OrderItem struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrderID    snowflake.ID  `gorm:"not null;index" json:"order_id"`
	PackageID  snowflake.ID  `gorm:"not null" json:"package_id"`
	Quantity   int           `gorm:"not null" json:"quantity"`
	UnitAmount int64         `gorm:"not null" json:"unit_amount"`
	StartDate  *time.Time    `json:"start_date,omitempty"`
	SimID      *snowflake.ID `json:"sim_id,omitempty"`
	CreatedAt  time.Time     `gorm:"not null" json:"created_at"`
}
