package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUnknownProvider  = errors.New("unknown_payment_provider")
	ErrInvalidConfig    = errors.New("invalid_adapter_config")
	ErrInvalidSignature = errors.New("invalid_webhook_signature")
	ErrInvalidPayload   = errors.New("invalid_webhook_payload")
	ErrEventIgnored     = errors.New("webhook_event_ignored")
)

type InitPaymentRequest struct {
	OrderID   snowflake.ID
	PaymentID snowflake.ID
	UserID    snowflake.ID
	Email     string
	Amount    int64
	Currency  string
	Method    string
}

// PaymentSession is what the gateway hands back when a one-time payment is
// initiated: where to send the customer, plus any opaque session metadata.
type PaymentSession struct {
	ProviderRef string
	RedirectURL string
	Metadata    map[string]any
}

type ChargeStoredCardRequest struct {
	OrderID           snowflake.ID
	PaymentID         snowflake.ID
	UserID            snowflake.ID
	Email             string
	Amount            int64
	Currency          string
	AuthorizationCode string
}

type ChargeResult struct {
	ProviderRef string
}

type EventType string

const (
	EventTypeChargeSuccess EventType = "charge_success"
	EventTypeChargeFailed  EventType = "charge_failed"
)

// WebhookEvent is a gateway callback normalized across providers. OrderID,
// PaymentID and UserID are echoed back from the metadata attached at
// initiation time.
type WebhookEvent struct {
	Type        EventType
	ProviderRef string
	Amount      int64
	Currency    string
	OrderID     snowflake.ID
	PaymentID   snowflake.ID
	UserID      snowflake.ID
}

// PaymentAdapter is the uniform interface over payment gateways.
type PaymentAdapter interface {
	Provider() string
	Methods() []string
	InitOneTimePayment(ctx context.Context, req InitPaymentRequest) (*PaymentSession, error)
	ChargeStoredCard(ctx context.Context, req ChargeStoredCardRequest) (*ChargeResult, error)
	VerifyWebhook(payload []byte, headers http.Header) error
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}
