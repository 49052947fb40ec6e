package webhookhttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/digicheckout/server/internal/domain/event"
	"github.com/digicheckout/server/internal/domain/webhook"
	"github.com/digicheckout/server/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxLogLimit = 500

// DeliveryLedger is the part of the dispatcher the admin API needs.
type DeliveryLedger interface {
	Logs(ctx context.Context, filter *model.WebhookLogFilter) ([]*model.WebhookLog, error)
	Replay(ctx context.Context, logID uuid.UUID) (*model.WebhookLog, error)
}

// AdminHandler exposes the outbound delivery ledger to operators.
type AdminHandler struct {
	ledger DeliveryLedger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(ledger DeliveryLedger) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	logs := r.Group("/webhook-logs")
	{
		logs.GET("", h.ListLogs)
		logs.POST("/:id/replay", h.Replay)
	}
}

// ListLogs handles GET /webhook-logs.
// Query: webhook_id, event, failed, limit.
func (h *AdminHandler) ListLogs(c *gin.Context) {
	filter := &model.WebhookLogFilter{Event: c.Query("event")}

	if raw := c.Query("webhook_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid_webhook_id", "Invalid webhook ID")
			return
		}
		filter.WebhookID = &id
	}
	if raw := c.Query("failed"); raw != "" {
		failed, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "invalid_failed", "failed must be a boolean")
			return
		}
		filter.FailedOnly = failed
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			badRequest(c, "invalid_limit", "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, maxLogLimit)
	}

	logs, err := h.ledger.Logs(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewListResponse(logs))
}

// Replay handles POST /webhook-logs/:id/replay. The delivery runs
// synchronously and the new attempt is returned.
func (h *AdminHandler) Replay(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_log_id", "Invalid webhook log ID")
		return
	}

	entry, err := h.ledger.Replay(c.Request.Context(), logID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Code: code, Message: message})
}

// handleError maps webhook domain errors to HTTP responses.
func handleError(c *gin.Context, err error) {
	var statusCode int
	var errorCode string
	var message string

	switch {
	case errors.Is(err, webhook.ErrWebhookLogNotFound):
		statusCode = http.StatusNotFound
		errorCode = "webhook_log_not_found"
		message = "Webhook log not found"

	case errors.Is(err, webhook.ErrWebhookNotFound):
		statusCode = http.StatusNotFound
		errorCode = "webhook_not_found"
		message = "Webhook not found"

	case errors.Is(err, webhook.ErrWebhookInactive):
		statusCode = http.StatusConflict
		errorCode = "webhook_inactive"
		message = "Webhook is inactive"

	case errors.Is(err, event.ErrUnknownEvent):
		statusCode = http.StatusUnprocessableEntity
		errorCode = "invalid_payload"
		message = "Recorded payload cannot be replayed"

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
