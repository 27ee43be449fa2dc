package wholesale

import (
	"context"
	"errors"
	"time"
)

// ProviderAiralo is the only wholesaler currently integrated.
const ProviderAiralo = "airalo"

var (
	ErrNotConfigured = errors.New("wholesale_not_configured")
	ErrAuthFailed    = errors.New("wholesale_auth_failed")
	ErrOrderRejected = errors.New("wholesale_order_rejected")
)

type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	IssuedAt    time.Time
}

func (t Token) Expired(now time.Time) bool {
	if t.AccessToken == "" {
		return true
	}
	return now.After(t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second))
}

type PackageItem struct {
	ExternalID    string
	Title         string
	Type          string
	Country       string
	Operator      string
	DataAmountMB  int64
	VoiceMinutes  int
	TextMessages  int
	ValidityDays  int
	PriceCents    int64
	NetPriceCents int64
	Currency      string
}

type ListPackagesRequest struct {
	Type    string
	Page    int
	Limit   int
	Country string
}

type ListPackagesResponse struct {
	Items    []PackageItem
	Page     int
	LastPage int
}

type CreateOrderRequest struct {
	ExternalPackageID string
	Quantity          int
	Type              string
	Description       string
	WebhookURL        string
}

type CreateOrderResponse struct {
	Accepted  bool
	RequestID string
}

type Usage struct {
	ICCID          string
	Status         string
	DataTotalMB    int64
	DataRemaining  int64
	VoiceTotal     int
	VoiceRemaining int
	TextTotal      int
	TextRemaining  int
}

// Client is the uniform interface over eSIM wholesalers. The concrete client
// authenticates lazily and re-authenticates once the cached token expires.
type Client interface {
	Authenticate(ctx context.Context) (Token, error)
	ListPackages(ctx context.Context, req ListPackagesRequest) (ListPackagesResponse, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
	FetchUsage(ctx context.Context, iccid string) (Usage, error)
}
