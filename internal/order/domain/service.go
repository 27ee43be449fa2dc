package domain

import (
	"context"
	"errors"
	"time"

	"github.com/simroam/simroam/pkg/db/pagination"
)

var (
	ErrEmptyCart       = errors.New("empty_cart")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidUser     = errors.New("invalid_user")
	ErrNotFound        = errors.New("order_not_found")
)

type CartItem struct {
	PackageID string     `json:"package_id"`
	Quantity  int        `json:"quantity"`
	StartDate *time.Time `json:"start_date,omitempty"`
}

type CreateOrderRequest struct {
	Items    []CartItem `json:"items"`
	Currency string     `json:"currency"`
}

type GetOrderRequest struct {
	ID string
}

type ListOrdersRequest struct {
	PageToken string
	PageSize  int
}

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

type ListOrdersResponse struct {
	pagination.PageInfo
	Orders []Order `json:"orders"`
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (Order, error)
	GetByID(ctx context.Context, req GetOrderRequest) (OrderWithItems, error)
	List(ctx context.Context, req ListOrdersRequest) (ListOrdersResponse, error)
}
