package paymenthttp

import (
	"errors"
	"net/http"

	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/domain/payment"
	"github.com/digicheckout/server/internal/model"
	apperrors "github.com/digicheckout/server/internal/utils/errors"
	"github.com/gin-gonic/gin"
)

const retryAfterSeconds = "30"

// toAppError maps payment domain errors to application errors.
func toAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		return apperrors.Unauthorized("Invalid notification signature").WithError(err)

	case errors.Is(err, payment.ErrMalformedNotification):
		return apperrors.BadRequest("Malformed notification").WithError(err)

	case errors.Is(err, order.ErrOrderNotFound):
		return apperrors.NotFound("order").WithError(err)

	case errors.Is(err, payment.ErrProviderUnavailable):
		return apperrors.ServiceUnavailable("Payment provider unavailable").WithError(err)

	default:
		return apperrors.From(err)
	}
}

// handleError writes the error response. 5xx answers make the provider retry.
func handleError(c *gin.Context, err error) {
	appErr := toAppError(err)
	_ = c.Error(err)

	if appErr.Retryable() {
		c.Header("Retry-After", retryAfterSeconds)
	}

	c.JSON(appErr.StatusCode, model.ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}

// readBody reads at most limit bytes of the request body.
func readBody(c *gin.Context, limit int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	return c.GetRawData()
}
