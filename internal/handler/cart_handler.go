package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// CartHandler handles cart HTTP requests. The cart owner comes from the
// identity middleware.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Get(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// AddItem handles POST /api/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddItemRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	cart, err := h.service.AddItem(r.Context(), middleware.IdentityFrom(r.Context()), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// UpdateItem handles PATCH /api/cart/items.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateItemRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	cart, err := h.service.UpdateItemQuantity(r.Context(), middleware.IdentityFrom(r.Context()), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/cart/items. Removing from a missing cart
// answers with an empty cart.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var key model.LineKey
	if !decode(w, r, &key, h.logger) {
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), middleware.IdentityFrom(r.Context()), key)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	if cart == nil {
		writeJSON(w, http.StatusOK, model.CartResponse{Items: []model.CartLine{}})
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
