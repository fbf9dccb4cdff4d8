package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles checkout and order lookup HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders. The order is built from the caller's cart.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	order, err := h.service.CreateOrder(r.Context(), service.CreateOrderInput{
		Identity:        middleware.IdentityFrom(r.Context()),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Contact:         req.Contact,
	})
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListMine handles GET /api/orders for a signed-in user.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFrom(r.Context())
	if s == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorised, "sign in to see your orders", h.logger)
		return
	}

	orders, err := h.service.ListForUser(r.Context(), s.UserID)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// Get handles GET /api/orders/{orderNumber}. Orders placed by an account are
// visible to that account and to admins only; guest orders are looked up by
// order number alone.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetByOrderNumber(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	if order.UserID != nil {
		s := middleware.SessionFrom(r.Context())
		if s == nil || (s.UserID != *order.UserID && !s.Admin) {
			// Same answer as a missing order so order numbers cannot be probed.
			writeServiceError(w, r, model.ErrOrderNotFound, h.logger)
			return
		}
	}

	writeJSON(w, http.StatusOK, order)
}

// PaymentHandler receives payment gateway callbacks.
type PaymentHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment callback handler.
func NewPaymentHandler(service service.OrderService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// Callback handles POST /api/payments/callback.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentCallbackRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	var (
		order *model.Order
		err   error
	)
	if req.Status == "success" {
		order, err = h.service.MarkPaid(r.Context(), req.OrderNumber, model.PaymentDetails{
			Provider:  req.Provider,
			Reference: req.Reference,
		})
	} else {
		order, err = h.service.MarkPaymentFailed(r.Context(), req.OrderNumber, req.Reason)
	}
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("provider", req.Provider).
		Str("payment_status", string(order.PaymentStatus)).
		Msg("payment callback processed")

	writeJSON(w, http.StatusOK, order)
}
