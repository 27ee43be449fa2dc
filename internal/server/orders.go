package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	fulfillmentdomain "github.com/simroam/simroam/internal/fulfillment/domain"
	orderdomain "github.com/simroam/simroam/internal/order/domain"
	"github.com/simroam/simroam/pkg/db/pagination"
)

type cartItemRequest struct {
	PackageID string `json:"package_id"`
	Quantity  int    `json:"quantity"`
	StartDate string `json:"start_date,omitempty"`
}

type createOrderRequest struct {
	Items    []cartItemRequest `json:"items"`
	Currency string            `json:"currency"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]orderdomain.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		cartItem := orderdomain.CartItem{
			PackageID: strings.TrimSpace(item.PackageID),
			Quantity:  item.Quantity,
		}
		if raw := strings.TrimSpace(item.StartDate); raw != "" {
			startDate, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
				return
			}
			cartItem.StartDate = &startDate
		}
		items = append(items, cartItem)
	}

	resp, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateOrderRequest{
		Items:    items,
		Currency: strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type orderDetailResponse struct {
	orderdomain.OrderWithItems
	Sims []fulfillmentdomain.Sim `json:"sims"`
}

func (s *Server) GetOrder(c *gin.Context) {
	resp, err := s.orderSvc.GetByID(c.Request.Context(), orderdomain.GetOrderRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sims, err := s.fulfillRepo.FindSimsByOrder(c.Request.Context(), s.db, resp.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orderDetailResponse{
		OrderWithItems: resp,
		Sims:           sims,
	}})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrdersRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
