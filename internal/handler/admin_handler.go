package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// AdminHandler handles back-office HTTP requests. Routes are guarded by
// middleware.AdminAuth.
type AdminHandler struct {
	products service.ProductService
	orders   service.OrderService
	logger   zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(products service.ProductService, orders service.OrderService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		products: products,
		orders:   orders,
		logger:   logger.With().Str("handler", "admin").Logger(),
	}
}

// CreateProduct handles POST /api/admin/products.
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req model.ProductRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.products.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/admin/products/{id}.
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req model.ProductRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.products.Update(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/admin/products/{id}. Products are soft
// deleted so past orders keep their references.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestockProduct handles POST /api/admin/products/{id}/restock.
func (h *AdminHandler) RestockProduct(w http.ResponseWriter, r *http.Request) {
	var req model.RestockRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.products.Restock(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// ListOrders handles GET /api/admin/orders.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed, err.Error(), h.logger)
		return
	}

	orders, err := h.orders.ListAll(r.Context(), model.OrderFilter{
		Status: model.OrderStatus(r.URL.Query().Get("status")),
		UserID: r.URL.Query().Get("userId"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus handles PATCH /api/admin/orders/{orderNumber}/status.
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req model.StatusUpdateRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), r.PathValue("orderNumber"), req.Status, req.Note)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
