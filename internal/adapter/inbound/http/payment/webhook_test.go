package paymenthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/domain/payment"
	"github.com/digicheckout/server/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockPaymentDomain struct {
	mock.Mock
}

func (m *MockPaymentDomain) HandleNotification(ctx context.Context, input *payment.NotificationInput) (*payment.Result, error) {
	args := m.Called(ctx, input)
	if r := args.Get(0); r != nil {
		return r.(*payment.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRouter(domain payment.PaymentDomain) *gin.Engine {
	r := gin.New()
	NewWebhookHandler(domain, "X-Idempotency-Key").RegisterRoutes(r.Group("/api/v1"))
	return r
}

func post(r http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleNotification_Processed(t *testing.T) {
	domain := new(MockPaymentDomain)
	orderID := uuid.New()
	body := `{"action":"payment.updated","data":{"id":"123"}}`

	domain.On("HandleNotification", mock.Anything, mock.MatchedBy(func(in *payment.NotificationInput) bool {
		return string(in.Body) == body &&
			in.Signature == "ts=1,v1=abc" &&
			in.RequestID == "req-1" &&
			in.IdempotencyKey == "idem-1"
	})).Return(&payment.Result{
		Outcome:     payment.OutcomeProcessed,
		WebhookID:   "req-1",
		OrderID:     &orderID,
		OrderStatus: model.OrderStatusPaid,
	}, nil)

	w := post(newRouter(domain), body, map[string]string{
		payment.HeaderSignature: "ts=1,v1=abc",
		payment.HeaderRequestID: "req-1",
		"X-Idempotency-Key":     "idem-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "processed", got["status"])
	assert.Equal(t, orderID.String(), got["order_id"])
	assert.Equal(t, "PAID", got["order_status"])
	domain.AssertExpectations(t)
}

func TestHandleNotification_AcknowledgedOutcomes(t *testing.T) {
	for _, outcome := range []payment.Outcome{payment.OutcomeDuplicate, payment.OutcomeIgnored, payment.OutcomeNotFound} {
		t.Run(string(outcome), func(t *testing.T) {
			domain := new(MockPaymentDomain)
			domain.On("HandleNotification", mock.Anything, mock.Anything).
				Return(&payment.Result{Outcome: outcome}, nil)

			w := post(newRouter(domain), `{}`, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), string(outcome))
		})
	}
}

func TestHandleNotification_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"signature", payment.ErrInvalidSignature, http.StatusUnauthorized},
		{"malformed", fmt.Errorf("%w: missing data.id", payment.ErrMalformedNotification), http.StatusBadRequest},
		{"order missing", order.ErrOrderNotFound, http.StatusNotFound},
		{"provider down", fmt.Errorf("%w: timeout", payment.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{"other", fmt.Errorf("commit: connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain := new(MockPaymentDomain)
			domain.On("HandleNotification", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := post(newRouter(domain), `{"action":"payment.updated","data":{"id":"1"}}`, nil)
			assert.Equal(t, tt.code, w.Code)

			var resp model.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Code)
			assert.NotContains(t, resp.Message, "connection reset")

			if tt.code >= http.StatusInternalServerError {
				assert.Equal(t, "30", w.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, w.Header().Get("Retry-After"))
			}
		})
	}
}
