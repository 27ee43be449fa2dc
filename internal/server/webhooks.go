package server

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	fulfillmentdomain "github.com/simroam/simroam/internal/fulfillment/domain"
	paymentdomain "github.com/simroam/simroam/internal/payment/domain"
	"github.com/simroam/simroam/internal/usercontext"
)

// HandlePaymentWebhook ingests gateway events. The signature is checked over
// the raw body before anything is parsed. Replayed deliveries resolve through
// the confirmation idempotency gate and still return 200, so the gateway
// stops retrying.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	adapter, err := s.adapters.Adapter(provider)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := adapter.VerifyWebhook(payload, c.Request.Header); err != nil {
		s.metrics.WebhookEvents.WithLabelValues(provider, "invalid_signature").Inc()
		AbortWithError(c, err)
		return
	}

	event, err := adapter.ParseWebhook(payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.metrics.WebhookEvents.WithLabelValues(provider, "ignored").Inc()
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		s.metrics.WebhookEvents.WithLabelValues(provider, "invalid_payload").Inc()
		AbortWithError(c, err)
		return
	}

	ctx := usercontext.WithUserID(c.Request.Context(), event.UserID)
	req := paymentdomain.ConfirmRequest{
		OrderID:     event.OrderID.String(),
		PaymentID:   event.PaymentID.String(),
		ReferenceID: event.ProviderRef,
	}

	switch event.Type {
	case paymentdomain.EventTypeChargeSuccess:
		amount := event.Amount
		req.Amount = &amount
		resp, err := s.confirmSvc.Confirm(ctx, req)
		if err != nil {
			s.metrics.WebhookEvents.WithLabelValues(provider, "error").Inc()
			AbortWithError(c, err)
			return
		}
		s.metrics.WebhookEvents.WithLabelValues(provider, resp.Status).Inc()
		c.JSON(http.StatusOK, gin.H{"status": resp.Status})
	case paymentdomain.EventTypeChargeFailed:
		if err := s.confirmSvc.Fail(ctx, req); err != nil {
			s.metrics.WebhookEvents.WithLabelValues(provider, "error").Inc()
			AbortWithError(c, err)
			return
		}
		s.metrics.WebhookEvents.WithLabelValues(provider, "failed").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	default:
		s.metrics.WebhookEvents.WithLabelValues(provider, "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

type issuedProfilePayload struct {
	ICCID      string `json:"iccid"`
	LPA        string `json:"lpa"`
	MatchingID string `json:"matching_id"`
	QRCode     string `json:"qrcode"`
	QRCodeURL  string `json:"qrcode_url"`
}

type fulfillmentCallbackRequest struct {
	RequestID string `json:"request_id"`
	Order     struct {
		ID           string                 `json:"id"`
		Price        float64                `json:"price"`
		NetPrice     float64                `json:"net_price"`
		Currency     string                 `json:"currency"`
		ValidityDays int                    `json:"validity"`
		Sims         []issuedProfilePayload `json:"sims"`
	} `json:"order"`
}

// HandleFulfillmentCallback ingests the wholesaler's async order-completion
// callback. Unmatched request ids are rejected with 404 and create nothing.
func (s *Server) HandleFulfillmentCallback(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))

	var req fulfillmentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.WebhookEvents.WithLabelValues(provider, "invalid_payload").Inc()
		AbortWithError(c, invalidRequestError())
		return
	}

	profiles := make([]fulfillmentdomain.IssuedProfile, 0, len(req.Order.Sims))
	for _, sim := range req.Order.Sims {
		profiles = append(profiles, fulfillmentdomain.IssuedProfile{
			ICCID:      sim.ICCID,
			LPA:        sim.LPA,
			MatchingID: sim.MatchingID,
			QRCode:     sim.QRCode,
			QRCodeURL:  sim.QRCodeURL,
		})
	}

	result, err := s.callbacks.HandleOrderCallback(c.Request.Context(), fulfillmentdomain.OrderCallback{
		Provider:        provider,
		RequestID:       strings.TrimSpace(req.RequestID),
		ExternalOrderID: strings.TrimSpace(req.Order.ID),
		PriceAmount:     toCents(req.Order.Price),
		NetPriceAmount:  toCents(req.Order.NetPrice),
		Currency:        strings.ToUpper(strings.TrimSpace(req.Order.Currency)),
		ValidityDays:    req.Order.ValidityDays,
		Profiles:        profiles,
	})
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues(provider, "error").Inc()
		AbortWithError(c, err)
		return
	}

	outcome := "completed"
	if result.AlreadyProcessed {
		outcome = "already_processed"
	}
	s.metrics.WebhookEvents.WithLabelValues(provider, outcome).Inc()
	c.JSON(http.StatusOK, gin.H{"status": outcome, "sims_created": result.SimsCreated})
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
