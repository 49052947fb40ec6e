package orderhttp

import (
	"net/http"

	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/model"
	"github.com/gin-gonic/gin"
)

// OrderHandler handles the order lifecycle triggers called by the checkout surface.
type OrderHandler struct {
	orderDomain order.OrderDomain
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orderDomain order.OrderDomain) *OrderHandler {
	return &OrderHandler{orderDomain: orderDomain}
}

// RegisterRoutes registers order routes.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/drafted", h.Drafted)
		orders.POST("/:id/payments", h.StartPayment)
	}
}

// StartPaymentRequest is the body of POST /orders/:id/payments.
type StartPaymentRequest struct {
	Provider          string `json:"provider"`
	ProviderPaymentID string `json:"provider_payment_id" binding:"required"`
	Method            string `json:"method"`
	Amount            int64  `json:"amount" binding:"required,gt=0"`
}

// GetOrder handles GET /orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	ord, err := h.orderDomain.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ord)
}

// Drafted handles POST /orders/:id/drafted.
func (h *OrderHandler) Drafted(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	ord, err := h.orderDomain.Drafted(c.Request.Context(), orderID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ord)
}

// StartPayment handles POST /orders/:id/payments.
func (h *OrderHandler) StartPayment(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req StartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    "invalid_request",
			Message: err.Error(),
		})
		return
	}

	payment, err := h.orderDomain.StartPayment(c.Request.Context(), orderID, &order.StartPaymentInput{
		Provider:          req.Provider,
		ProviderPaymentID: req.ProviderPaymentID,
		Method:            req.Method,
		Amount:            req.Amount,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}
