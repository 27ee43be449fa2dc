package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrAttemptNotFound      = errors.New("payment_attempt_not_found")
	ErrAmountMismatch       = errors.New("payment_amount_mismatch")
)

type CreateAttemptRequest struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	Method   string `json:"method"`
	Currency string `json:"currency"`
}

type AttemptService interface {
	Create(ctx context.Context, req CreateAttemptRequest) (PaymentAttempt, error)
}

type ConfirmRequest struct {
	OrderID     string
	PaymentID   string
	ReferenceID string
	// Amount, when non-nil, is checked against the attempt snapshot before
	// the order is marked paid. Webhook-driven confirmations set it.
	Amount *int64
}

const (
	ConfirmStatusConfirmed        = "confirmed"
	ConfirmStatusAlreadyConfirmed = "already_confirmed"
)

type ConfirmResult struct {
	Status  string         `json:"status"`
	Attempt PaymentAttempt `json:"attempt"`
}

// ConfirmationService consumes payment confirmations from webhooks or client
// calls. It must be safe under at-least-once, out-of-order delivery.
type ConfirmationService interface {
	Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResult, error)
	// Fail records a failed charge. A confirmation that already won is left
	// untouched, so a late failure event never downgrades a paid order.
	Fail(ctx context.Context, req ConfirmRequest) error
}
