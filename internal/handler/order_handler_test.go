package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/model"
	"storefront/internal/service"
	"storefront/internal/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func checkoutBody(contact bool) map[string]interface{} {
	body := map[string]interface{}{
		"shippingAddress": map[string]interface{}{
			"fullName":   "Asha Rao",
			"phone":      "9876543210",
			"line1":      "12 MG Road",
			"city":       "Bengaluru",
			"state":      "Karnataka",
			"postalCode": "560001",
			"country":    "India",
		},
		"paymentMethod": "COD",
	}
	if contact {
		body["contact"] = map[string]interface{}{"email": "asha@example.com", "name": "Asha Rao"}
	}
	return body
}

func TestOrderHandler_Create(t *testing.T) {
	logger := zerolog.Nop()
	placed := &model.Order{OrderNumber: "ORD-1718020800000-1A2B3C4D", Total: 839, OrderStatus: model.OrderStatusPlaced}

	tests := []struct {
		name           string
		body           map[string]interface{}
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
		expectedCode   string
		expectService  bool
	}{
		{
			name:           "Success",
			body:           checkoutBody(true),
			mockReturn:     placed,
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
		{
			name:           "Empty cart",
			body:           checkoutBody(true),
			mockError:      model.ErrEmptyCart,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeEmptyCart,
			expectService:  true,
		},
		{
			name:           "Insufficient stock",
			body:           checkoutBody(true),
			mockError:      &model.StockError{ProductID: "P001", Requested: 2},
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeInsufficientStock,
			expectService:  true,
		},
		{
			name:           "Datastore failure",
			body:           checkoutBody(true),
			mockError:      fmt.Errorf("%w: %w", model.ErrTransactionAborted, assert.AnError),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeTransactionAborted,
			expectService:  true,
		},
		{
			name: "Unsupported payment method",
			body: func() map[string]interface{} {
				b := checkoutBody(true)
				b["paymentMethod"] = "BITCOIN"
				return b
			}(),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidationFailed,
		},
		{
			name: "Incomplete address",
			body: func() map[string]interface{} {
				b := checkoutBody(true)
				delete(b["shippingAddress"].(map[string]interface{}), "city")
				return b
			}(),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOrderService)
			handler := NewOrderHandler(mockService, logger)

			if tt.expectService {
				mockService.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in service.CreateOrderInput) bool {
					return in.Identity == guest && in.PaymentMethod == model.PaymentMethodCOD &&
						in.ShippingAddress.City == "Bengaluru" && in.Contact != nil
				})).Return(tt.mockReturn, tt.mockError)
			}

			req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/orders", jsonBody(t, tt.body)), guest, nil)
			w := httptest.NewRecorder()

			handler.Create(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			} else {
				var order model.Order
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
				assert.Equal(t, placed.OrderNumber, order.OrderNumber)
			}
			if !tt.expectService {
				mockService.AssertNotCalled(t, "CreateOrder")
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_ListMine(t *testing.T) {
	t.Run("guest is unauthorised", func(t *testing.T) {
		mockService := new(MockOrderService)
		handler := NewOrderHandler(mockService, zerolog.Nop())

		req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/orders", nil), guest, nil)
		w := httptest.NewRecorder()
		handler.ListMine(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "ListForUser")
	})

	t.Run("user sees own orders", func(t *testing.T) {
		mockService := new(MockOrderService)
		handler := NewOrderHandler(mockService, zerolog.Nop())

		mockService.On("ListForUser", mock.Anything, "user-1").Return([]model.Order(nil), nil)

		req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/orders", nil),
			model.Identity{UserID: "user-1"}, &session.Session{UserID: "user-1"})
		w := httptest.NewRecorder()
		handler.ListMine(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestOrderHandler_Get(t *testing.T) {
	owner := "user-1"
	userOrder := &model.Order{OrderNumber: "ORD-1", UserID: &owner}
	guestOrder := &model.Order{OrderNumber: "ORD-2", Guest: &model.GuestContact{Email: "g@example.com", Name: "G"}}

	tests := []struct {
		name           string
		order          *model.Order
		session        *session.Session
		expectedStatus int
	}{
		{name: "Owner", order: userOrder, session: &session.Session{UserID: owner}, expectedStatus: http.StatusOK},
		{name: "Admin", order: userOrder, session: &session.Session{UserID: "admin", Admin: true}, expectedStatus: http.StatusOK},
		{name: "Other user", order: userOrder, session: &session.Session{UserID: "user-2"}, expectedStatus: http.StatusNotFound},
		{name: "Anonymous on account order", order: userOrder, expectedStatus: http.StatusNotFound},
		{name: "Guest order", order: guestOrder, expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOrderService)
			handler := NewOrderHandler(mockService, zerolog.Nop())
			mockService.On("GetByOrderNumber", mock.Anything, tt.order.OrderNumber).Return(tt.order, nil)

			identity := guest
			if tt.session != nil {
				identity = model.Identity{UserID: tt.session.UserID}
			}
			req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/orders/"+tt.order.OrderNumber, nil), identity, tt.session)
			req.SetPathValue("orderNumber", tt.order.OrderNumber)
			w := httptest.NewRecorder()

			handler.Get(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	t.Run("Unknown order", func(t *testing.T) {
		mockService := new(MockOrderService)
		handler := NewOrderHandler(mockService, zerolog.Nop())
		mockService.On("GetByOrderNumber", mock.Anything, "ORD-404").Return(nil, model.ErrOrderNotFound)

		req := httptest.NewRequest(http.MethodGet, "/api/orders/ORD-404", nil)
		req.SetPathValue("orderNumber", "ORD-404")
		w := httptest.NewRecorder()
		handler.Get(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, model.ErrCodeOrderNotFound, decodeError(t, w).Error)
	})
}

func TestPaymentHandler_Callback(t *testing.T) {
	paid := &model.Order{OrderNumber: "ORD-1", PaymentStatus: model.PaymentStatusPaid}
	failed := &model.Order{OrderNumber: "ORD-1", PaymentStatus: model.PaymentStatusFailed}

	tests := []struct {
		name           string
		body           map[string]interface{}
		setup          func(m *MockOrderService)
		expectedStatus int
	}{
		{
			name: "Success marks paid",
			body: map[string]interface{}{"orderId": "ORD-1", "status": "success", "provider": "mockpay", "reference": "TXN-9"},
			setup: func(m *MockOrderService) {
				m.On("MarkPaid", mock.Anything, "ORD-1", model.PaymentDetails{Provider: "mockpay", Reference: "TXN-9"}).Return(paid, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Failure marks payment failed",
			body: map[string]interface{}{"orderId": "ORD-1", "status": "failed", "provider": "mockpay", "reason": "declined"},
			setup: func(m *MockOrderService) {
				m.On("MarkPaymentFailed", mock.Anything, "ORD-1", "declined").Return(failed, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Success requires a reference",
			body:           map[string]interface{}{"orderId": "ORD-1", "status": "success", "provider": "mockpay"},
			setup:          func(m *MockOrderService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Refunded order rejects payment",
			body: map[string]interface{}{"orderId": "ORD-1", "status": "success", "provider": "mockpay", "reference": "TXN-9"},
			setup: func(m *MockOrderService) {
				m.On("MarkPaid", mock.Anything, "ORD-1", mock.Anything).Return(nil, model.ErrInvalidStatusTransition)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Unknown order",
			body: map[string]interface{}{"orderId": "ORD-404", "status": "failed", "provider": "mockpay"},
			setup: func(m *MockOrderService) {
				m.On("MarkPaymentFailed", mock.Anything, "ORD-404", "").Return(nil, model.ErrOrderNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOrderService)
			tt.setup(mockService)
			handler := NewPaymentHandler(mockService, zerolog.Nop())

			req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", jsonBody(t, tt.body))
			w := httptest.NewRecorder()
			handler.Callback(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}
