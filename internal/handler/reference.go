package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftpool/internal/store"
)

// ReferenceHandler serves seeded lookup data and the caller's plan limits.
type ReferenceHandler struct {
	reference     *store.ReferenceStore
	subscriptions *store.SubscriptionStore
	logger        *slog.Logger
}

func NewReferenceHandler(rs *store.ReferenceStore, ss *store.SubscriptionStore, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{reference: rs, subscriptions: ss, logger: logger}
}

// Currencies handles GET /api/currencies
func (h *ReferenceHandler) Currencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.reference.ListCurrencies(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Countries handles GET /api/countries
func (h *ReferenceHandler) Countries(w http.ResponseWriter, r *http.Request) {
	list, err := h.reference.ListCountries(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// PredefinedCategories handles GET /api/predefined-categories
func (h *ReferenceHandler) PredefinedCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.reference.ListPredefinedCategories(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Limits handles GET /api/subscription/limits
func (h *ReferenceHandler) Limits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.subscriptions.CheckLimits(r.Context(), session(r).UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, limits)
}
