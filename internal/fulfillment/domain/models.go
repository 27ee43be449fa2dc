package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ProviderOrderStatus string

const (
	ProviderOrderStatusPending    ProviderOrderStatus = "PENDING"
	ProviderOrderStatusProcessing ProviderOrderStatus = "PROCESSING"
	ProviderOrderStatusCompleted  ProviderOrderStatus = "COMPLETED"
	ProviderOrderStatusCancelled  ProviderOrderStatus = "CANCELLED"
)

// ProviderOrder is the fulfillment request sent to the wholesaler for one
// order item. ExternalRequestID correlates the async completion callback;
// ExternalOrderID is written at most once, by that callback.
type ProviderOrder struct {
	ID                snowflake.ID        `gorm:"primaryKey" json:"id"`
	OrderID           snowflake.ID        `gorm:"not null;index" json:"order_id"`
	OrderItemID       snowflake.ID        `gorm:"not null;uniqueIndex:ux_provider_orders_item" json:"order_item_id"`
	Provider          string              `gorm:"not null;uniqueIndex:ux_provider_orders_request,priority:1" json:"provider"`
	ExternalRequestID string              `gorm:"not null;uniqueIndex:ux_provider_orders_request,priority:2" json:"external_request_id"`
	ExternalOrderID   string              `json:"external_order_id,omitempty"`
	Status            ProviderOrderStatus `gorm:"not null" json:"status"`
	PackageRef        string              `gorm:"not null" json:"package_ref"`
	Quantity          int                 `gorm:"not null" json:"quantity"`
	PackageType       string              `json:"package_type"`
	ValidityDays      int                 `json:"validity_days"`
	DataAmountMB      int64               `gorm:"column:data_amount_mb" json:"data_amount_mb"`
	VoiceMinutes      int                 `json:"voice_minutes"`
	TextMessages      int                 `json:"text_messages"`
	PriceAmount       int64               `json:"price_amount"`
	NetPriceAmount    int64               `json:"net_price_amount"`
	Currency          string              `gorm:"not null" json:"currency"`
	StartDate         *time.Time          `json:"start_date,omitempty"`
	CreatedAt         time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"not null" json:"updated_at"`
}

type SimStatus string

const (
	SimStatusNotActive   SimStatus = "NOT_ACTIVE"
	SimStatusActive      SimStatus = "ACTIVE"
	SimStatusFinished    SimStatus = "FINISHED"
	SimStatusDeactivated SimStatus = "DEACTIVATED"
	SimStatusExpired     SimStatus = "EXPIRED"
	SimStatusUnknown     SimStatus = "UNKNOWN"
	SimStatusRecycled    SimStatus = "RECYCLED"
)

// PollableStatuses are the sim states the usage worker keeps refreshing.
var PollableStatuses = []SimStatus{SimStatusNotActive, SimStatusActive}

// Sim is one issued eSIM profile. Usage fields are mutated only by the usage
// polling worker.
type Sim struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	ProviderOrderID  snowflake.ID `gorm:"not null;index" json:"provider_order_id"`
	UserID           snowflake.ID `gorm:"not null;index" json:"user_id"`
	Name             string       `gorm:"not null" json:"name"`
	ICCID            string       `gorm:"not null;uniqueIndex" json:"iccid"`
	LPA              string       `json:"lpa,omitempty"`
	MatchingID       string       `json:"matching_id,omitempty"`
	QRCode           string       `json:"qr_code,omitempty"`
	QRCodeURL        string       `json:"qr_code_url,omitempty"`
	Provider         string       `gorm:"not null" json:"provider"`
	Status           SimStatus    `gorm:"not null" json:"status"`
	DataTotalMB      int64        `gorm:"column:data_total_mb" json:"data_total_mb"`
	DataRemainingMB  int64        `gorm:"column:data_remaining_mb" json:"data_remaining_mb"`
	VoiceTotal       int          `json:"voice_total"`
	VoiceRemaining   int          `json:"voice_remaining"`
	TextTotal        int          `json:"text_total"`
	TextRemaining    int          `json:"text_remaining"`
	LastUsageFetchAt *time.Time   `json:"last_usage_fetch_at,omitempty"`
	CreatedAt        time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updated_at"`
}

// PackageHistory is the append-only audit trail of activations, top-ups and
// renewals against a sim.
type PackageHistory struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	SimID        snowflake.ID `gorm:"not null;index" json:"sim_id"`
	Action       string       `gorm:"not null" json:"action"`
	PackageRef   string       `gorm:"not null" json:"package_ref"`
	DataAmountMB int64        `gorm:"column:data_amount_mb" json:"data_amount_mb"`
	ValidityDays int          `json:"validity_days"`
	StartAt      *time.Time   `json:"start_at,omitempty"`
	EndAt        *time.Time   `json:"end_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
}

const (
	HistoryActionActivation = "activation"
	HistoryActionTopUp      = "top_up"
	HistoryActionRenewal    = "renewal"
)
