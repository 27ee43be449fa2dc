package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/simroam/simroam/internal/payment/domain"
)

type createPaymentRequest struct {
	Provider string `json:"provider"`
	Method   string `json:"method"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.attemptSvc.Create(c.Request.Context(), paymentdomain.CreateAttemptRequest{
		OrderID:  strings.TrimSpace(c.Param("id")),
		Provider: strings.TrimSpace(req.Provider),
		Method:   strings.TrimSpace(req.Method),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type confirmPaymentRequest struct {
	ReferenceID string `json:"reference_id"`
}

// ConfirmPayment is the client-driven confirmation path for redirect flows
// where the webhook has not landed yet. It shares the webhook's idempotency
// gate, so the two paths never double-fulfill.
func (s *Server) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.confirmSvc.Confirm(c.Request.Context(), paymentdomain.ConfirmRequest{
		OrderID:     strings.TrimSpace(c.Param("id")),
		PaymentID:   strings.TrimSpace(c.Param("payment_id")),
		ReferenceID: strings.TrimSpace(req.ReferenceID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
