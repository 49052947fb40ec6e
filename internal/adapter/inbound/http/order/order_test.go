package orderhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digicheckout/server/internal/domain/order"
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

type MockOrderDomain struct {
	mock.Mock
}

func (m *MockOrderDomain) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if o := args.Get(0); o != nil {
		return o.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderDomain) Drafted(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if o := args.Get(0); o != nil {
		return o.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderDomain) StartPayment(ctx context.Context, orderID uuid.UUID, input *order.StartPaymentInput) (*model.Payment, error) {
	args := m.Called(ctx, orderID, input)
	if p := args.Get(0); p != nil {
		return p.(*model.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRouter(domain order.OrderDomain) *gin.Engine {
	r := gin.New()
	NewOrderHandler(domain).RegisterRoutes(r.Group("/internal"))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDrafted(t *testing.T) {
	domain := new(MockOrderDomain)
	orderID := uuid.New()
	domain.On("Drafted", mock.Anything, orderID).
		Return(&model.Order{ID: orderID, Status: model.OrderStatusDraft}, nil)

	w := do(newRouter(domain), http.MethodPost, "/internal/orders/"+orderID.String()+"/drafted", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"DRAFT"`)
	domain.AssertExpectations(t)
}

func TestDrafted_NotDraft(t *testing.T) {
	domain := new(MockOrderDomain)
	orderID := uuid.New()
	domain.On("Drafted", mock.Anything, orderID).
		Return(nil, fmt.Errorf("%w: status is PAID", order.ErrOrderNotDraft))

	w := do(newRouter(domain), http.MethodPost, "/internal/orders/"+orderID.String()+"/drafted", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order_not_draft", resp.Code)
}

func TestStartPayment(t *testing.T) {
	domain := new(MockOrderDomain)
	orderID := uuid.New()
	domain.On("StartPayment", mock.Anything, orderID, &order.StartPaymentInput{
		ProviderPaymentID: "mp-1", Method: "pix", Amount: 14700,
	}).Return(&model.Payment{OrderID: orderID, ProviderPaymentID: "mp-1", Status: model.PaymentStatusPending}, nil)

	w := do(newRouter(domain), http.MethodPost, "/internal/orders/"+orderID.String()+"/payments",
		`{"provider_payment_id":"mp-1","method":"pix","amount":14700}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"provider_payment_id":"mp-1"`)
	domain.AssertExpectations(t)
}

func TestStartPayment_BadRequests(t *testing.T) {
	domain := new(MockOrderDomain)
	r := newRouter(domain)

	w := do(r, http.MethodPost, "/internal/orders/not-a-uuid/payments", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/internal/orders/"+uuid.NewString()+"/payments", `{"amount":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	domain.AssertNotCalled(t, "StartPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{order.ErrOrderNotFound, http.StatusNotFound},
		{order.ErrInvalidTransition, http.StatusConflict},
		{order.ErrOrderStateChanged, http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		domain := new(MockOrderDomain)
		orderID := uuid.New()
		domain.On("GetOrder", mock.Anything, orderID).Return(nil, tt.err)

		w := do(newRouter(domain), http.MethodGet, "/internal/orders/"+orderID.String(), "")
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
	}
}
