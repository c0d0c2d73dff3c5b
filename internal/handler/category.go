package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftpool/internal/service"
)

type CategoryHandler struct {
	categories *service.CategoryService
	gifts      *service.GiftService
	logger     *slog.Logger
}

func NewCategoryHandler(cs *service.CategoryService, gs *service.GiftService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: cs, gifts: gs, logger: logger}
}

// List handles GET /api/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.GetCategories(r.Context(), session(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.categories.CreateCategory(r.Context(), session(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Delete handles DELETE /api/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.categories.DeleteCategory(r.Context(), session(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGifts handles GET /api/categories/{id}/gifts
func (h *CategoryHandler) ListGifts(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	gifts, err := h.gifts.ListGifts(r.Context(), session(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, gifts)
}

// CreateGift handles POST /api/categories/{id}/gifts
func (h *CategoryHandler) CreateGift(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req service.GiftInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	g, err := h.gifts.CreateGift(r.Context(), session(r), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type GiftHandler struct {
	gifts  *service.GiftService
	logger *slog.Logger
}

func NewGiftHandler(gs *service.GiftService, logger *slog.Logger) *GiftHandler {
	return &GiftHandler{gifts: gs, logger: logger}
}

// Update handles PUT /api/gifts/{id}
func (h *GiftHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req service.GiftInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	g, err := h.gifts.UpdateGift(r.Context(), session(r), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type purchasedRequest struct {
	IsPurchased bool `json:"isPurchased"`
}

// SetPurchased handles POST /api/gifts/{id}/purchased
func (h *GiftHandler) SetPurchased(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := purchasedRequest{IsPurchased: true}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	g, err := h.gifts.SetPurchased(r.Context(), session(r), id, req.IsPurchased)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Delete handles DELETE /api/gifts/{id}
func (h *GiftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.gifts.DeleteGift(r.Context(), session(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
