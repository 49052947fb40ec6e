package paymenthttp

import (
	"net/http"

	"github.com/digicheckout/server/internal/domain/payment"
	"github.com/digicheckout/server/internal/model"
	"github.com/gin-gonic/gin"
)

const maxNotificationBytes = 1 << 20

// WebhookHandler handles payment provider notifications.
type WebhookHandler struct {
	domain      payment.PaymentDomain
	dedupHeader string
}

// NewWebhookHandler creates a new webhook handler. dedupHeader names the
// optional request header carrying a provider idempotency key.
func NewWebhookHandler(domain payment.PaymentDomain, dedupHeader string) *WebhookHandler {
	return &WebhookHandler{domain: domain, dedupHeader: dedupHeader}
}

// RegisterRoutes registers webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/payments", h.HandleNotification)
	}
}

// HandleNotification handles POST /webhooks/payments.
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	body, err := readBody(c, maxNotificationBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    "invalid_payload",
			Message: "Failed to read request body",
		})
		return
	}

	input := &payment.NotificationInput{
		Body:      body,
		Signature: c.GetHeader(payment.HeaderSignature),
		RequestID: c.GetHeader(payment.HeaderRequestID),
	}
	if h.dedupHeader != "" {
		input.IdempotencyKey = c.GetHeader(h.dedupHeader)
	}

	result, err := h.domain.HandleNotification(c.Request.Context(), input)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
