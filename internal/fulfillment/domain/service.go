package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/simroam/simroam/internal/order/domain"
	"gorm.io/gorm"
)

var (
	ErrProviderOrderNotFound = errors.New("provider_order_not_found")
	ErrCallbackRejected      = errors.New("callback_rejected")
)

// Request is one normalized fulfillment request: one wholesaler order-create
// call per order item.
type Request struct {
	OrderItemID       snowflake.ID
	Provider          string
	ExternalPackageID string
	Quantity          int
	PackageType       string
	DataAmountMB      int64
	VoiceMinutes      int
	TextMessages      int
	ValidityDays      int
	PriceAmount       int64
	NetPriceAmount    int64
	StartDate         *time.Time
}

// Service converts paid order items into wholesaler orders. ProcessProviderOrders
// runs inside the caller's transaction: a wholesaler rejection rolls the whole
// confirmation back.
type Service interface {
	ProcessProviderOrders(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, requests []Request) error
}

// IssuedProfile is one eSIM profile delivered by the wholesaler callback.
type IssuedProfile struct {
	ICCID      string `json:"iccid"`
	LPA        string `json:"lpa"`
	MatchingID string `json:"matching_id"`
	QRCode     string `json:"qrcode"`
	QRCodeURL  string `json:"qrcode_url"`
}

type OrderCallback struct {
	Provider        string
	RequestID       string
	ExternalOrderID string
	PriceAmount     int64
	NetPriceAmount  int64
	Currency        string
	ValidityDays    int
	Profiles        []IssuedProfile
}

type CallbackResult struct {
	OrderID          snowflake.ID
	SimsCreated      int
	AlreadyProcessed bool
}

// CallbackHandler consumes the wholesaler's async order-completion webhook.
// It never creates records from an unmatched callback.
type CallbackHandler interface {
	HandleOrderCallback(ctx context.Context, callback OrderCallback) (CallbackResult, error)
}
