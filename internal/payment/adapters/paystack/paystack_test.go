package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := New(config.Config{
		Paystack: config.PaystackConfig{
			BaseURL:   "https://api.paystack.co",
			SecretKey: "sk_test_secret",
		},
	}, metrics.New())
	require.NoError(t, err)
	return adapter
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNew_RequiresSecretKey(t *testing.T) {
	_, err := New(config.Config{}, metrics.New())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestVerifyWebhook(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"event":"charge.success"}`)

	headers := http.Header{}
	headers.Set("x-paystack-signature", sign("sk_test_secret", payload))
	assert.NoError(t, adapter.VerifyWebhook(payload, headers))

	headers.Set("x-paystack-signature", sign("wrong_secret", payload))
	assert.ErrorIs(t, adapter.VerifyWebhook(payload, headers), domain.ErrInvalidSignature)

	assert.ErrorIs(t, adapter.VerifyWebhook(payload, http.Header{}), domain.ErrInvalidSignature)

	headers.Set("x-paystack-signature", sign("sk_test_secret", payload))
	tampered := []byte(`{"event":"charge.failed"}`)
	assert.ErrorIs(t, adapter.VerifyWebhook(tampered, headers), domain.ErrInvalidSignature)
}

func TestParseWebhook_ChargeSuccess(t *testing.T) {
	adapter := newTestAdapter(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	orderID := node.Generate()
	paymentID := node.Generate()
	userID := node.Generate()

	payload := fmt.Sprintf(`{
		"event": "charge.success",
		"data": {
			"reference": "ref-42",
			"amount": 1350,
			"currency": "USD",
			"metadata": {"order_id": "%s", "payment_id": "%s", "user_id": "%s"}
		}
	}`, orderID, paymentID, userID)

	event, err := adapter.ParseWebhook([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeChargeSuccess, event.Type)
	assert.Equal(t, "ref-42", event.ProviderRef)
	assert.Equal(t, int64(1350), event.Amount)
	assert.Equal(t, orderID, event.OrderID)
	assert.Equal(t, paymentID, event.PaymentID)
	assert.Equal(t, userID, event.UserID)
}

func TestParseWebhook_IgnoresUnknownEvents(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.ParseWebhook([]byte(`{"event":"subscription.create","data":{}}`))
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}

func TestParseWebhook_RejectsMissingMetadata(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.ParseWebhook([]byte(`{"event":"charge.success","data":{"reference":"ref"}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = adapter.ParseWebhook([]byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestInitOneTimePayment_RoundTripsMetadata(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	orderID := node.Generate()
	paymentID := node.Generate()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		fmt.Fprint(w, `{
			"status": true,
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc",
				"access_code": "ac_123",
				"reference": "ref-1"
			}
		}`)
	}))
	defer srv.Close()

	m := metrics.New()
	adapter, err := New(config.Config{
		Paystack: config.PaystackConfig{BaseURL: srv.URL, SecretKey: "sk_test_secret"},
	}, m)
	require.NoError(t, err)

	session, err := adapter.InitOneTimePayment(context.Background(), domain.InitPaymentRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		UserID:    node.Generate(),
		Email:     "user@example.com",
		Amount:    1350,
		Currency:  "USD",
		Method:    "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
	assert.Equal(t, "ref-1", session.ProviderRef)
	assert.Equal(t, "https://checkout.paystack.com/abc", session.RedirectURL)
	assert.Equal(t, "ac_123", session.Metadata["access_code"])
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExternalLatency))
}
