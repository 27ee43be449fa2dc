package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/payment/domain"
	"github.com/simroam/simroam/internal/retry"
)

const ProviderName = "paystack"

var methods = []string{"card", "bank", "bank_transfer", "ussd", "mobile_money"}

type Adapter struct {
	baseURL     string
	secretKey   string
	callbackURL string
	http        *http.Client
	metrics     *metrics.Metrics
}

func New(cfg config.Config, m *metrics.Metrics) (*Adapter, error) {
	secret := strings.TrimSpace(cfg.Paystack.SecretKey)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{
		baseURL:     strings.TrimRight(cfg.Paystack.BaseURL, "/"),
		secretKey:   secret,
		callbackURL: cfg.Paystack.CallbackURL,
		http:        &http.Client{Timeout: 30 * time.Second},
		metrics:     m,
	}, nil
}

func (a *Adapter) Provider() string {
	return ProviderName
}

func (a *Adapter) Methods() []string {
	return methods
}

type initializeEnvelope struct {
	Status bool `json:"status"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (a *Adapter) InitOneTimePayment(ctx context.Context, req domain.InitPaymentRequest) (*domain.PaymentSession, error) {
	body, _ := json.Marshal(map[string]any{
		// Paystack expects amounts in the currency subunit.
		"amount":       req.Amount,
		"currency":     req.Currency,
		"email":        req.Email,
		"channels":     []string{req.Method},
		"callback_url": a.callbackURL,
		"metadata": map[string]string{
			"order_id":   req.OrderID.String(),
			"payment_id": req.PaymentID.String(),
			"user_id":    req.UserID.String(),
		},
	})

	var envelope initializeEnvelope
	if err := a.post(ctx, "initialize", "/transaction/initialize", body, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Status {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.PaymentSession{
		ProviderRef: envelope.Data.Reference,
		RedirectURL: envelope.Data.AuthorizationURL,
		Metadata: map[string]any{
			"access_code": envelope.Data.AccessCode,
		},
	}, nil
}

type chargeEnvelope struct {
	Status bool `json:"status"`
	Data   struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

func (a *Adapter) ChargeStoredCard(ctx context.Context, req domain.ChargeStoredCardRequest) (*domain.ChargeResult, error) {
	body, _ := json.Marshal(map[string]any{
		"authorization_code": req.AuthorizationCode,
		"email":              req.Email,
		"amount":             req.Amount,
		"currency":           req.Currency,
		"metadata": map[string]string{
			"order_id":   req.OrderID.String(),
			"payment_id": req.PaymentID.String(),
			"user_id":    req.UserID.String(),
		},
	})

	var envelope chargeEnvelope
	if err := a.post(ctx, "charge_authorization", "/transaction/charge_authorization", body, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Status || envelope.Data.Status != "success" {
		return nil, domain.ErrInvalidPayload
	}
	return &domain.ChargeResult{ProviderRef: envelope.Data.Reference}, nil
}

// VerifyWebhook checks the HMAC-SHA512 signature Paystack computes over the
// raw request body with the account secret key.
func (a *Adapter) VerifyWebhook(payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("x-paystack-signature"))
	if signature == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha512.New, []byte(a.secretKey))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Metadata  struct {
			OrderID   string `json:"order_id"`
			PaymentID string `json:"payment_id"`
			UserID    string `json:"user_id"`
		} `json:"metadata"`
	} `json:"data"`
}

func (a *Adapter) ParseWebhook(payload []byte) (*domain.WebhookEvent, error) {
	var event webhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	var eventType domain.EventType
	switch event.Event {
	case "charge.success":
		eventType = domain.EventTypeChargeSuccess
	case "charge.failed", "transaction.failed":
		eventType = domain.EventTypeChargeFailed
	default:
		return nil, domain.ErrEventIgnored
	}

	orderID, err := snowflake.ParseString(event.Data.Metadata.OrderID)
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}
	paymentID, err := snowflake.ParseString(event.Data.Metadata.PaymentID)
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}
	userID, err := snowflake.ParseString(event.Data.Metadata.UserID)
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.WebhookEvent{
		Type:        eventType,
		ProviderRef: event.Data.Reference,
		Amount:      event.Data.Amount,
		Currency:    event.Data.Currency,
		OrderID:     orderID,
		PaymentID:   paymentID,
		UserID:      userID,
	}, nil
}

func (a *Adapter) post(ctx context.Context, call, path string, body []byte, out any) error {
	start := time.Now()
	defer func() {
		a.metrics.ExternalLatency.WithLabelValues(ProviderName, call).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &retry.StatusError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("paystack %s: %s", path, strings.TrimSpace(string(payload))),
		}
	}
	return json.Unmarshal(payload, out)
}
