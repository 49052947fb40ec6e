package orderhttp

import (
	"errors"
	"net/http"

	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// parseOrderID reads the :id path parameter, writing a 400 when invalid.
func parseOrderID(c *gin.Context) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    "invalid_order_id",
			Message: "Invalid order ID",
		})
		return uuid.Nil, false
	}
	return orderID, true
}

// handleError maps order domain errors to HTTP responses.
func handleError(c *gin.Context, err error) {
	var statusCode int
	var errorCode string
	var message string

	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		statusCode = http.StatusNotFound
		errorCode = "order_not_found"
		message = "Order not found"

	case errors.Is(err, order.ErrOrderNotDraft):
		statusCode = http.StatusConflict
		errorCode = "order_not_draft"
		message = "Order is not a draft"

	case errors.Is(err, order.ErrInvalidTransition):
		statusCode = http.StatusConflict
		errorCode = "invalid_transition"
		message = "Order cannot move to the requested status"

	case errors.Is(err, order.ErrOrderStateChanged):
		statusCode = http.StatusConflict
		errorCode = "order_state_changed"
		message = "Order status changed concurrently"

	case errors.Is(err, order.ErrInvalidPaymentData):
		statusCode = http.StatusBadRequest
		errorCode = "invalid_payment_data"
		message = err.Error()

	default:
		statusCode = http.StatusInternalServerError
		errorCode = "internal_error"
		message = "Internal server error"
	}

	_ = c.Error(err)
	c.JSON(statusCode, model.ErrorResponse{
		Code:    errorCode,
		Message: message,
	})
}
