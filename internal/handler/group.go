package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/service"
)

type GroupHandler struct {
	groups       *service.GroupService
	participants *service.ParticipantService
	logger       *slog.Logger
}

func NewGroupHandler(gs *service.GroupService, ps *service.ParticipantService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: gs, participants: ps, logger: logger}
}

// List handles GET /api/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.GetGroups(r.Context(), session(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// Create handles POST /api/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.GroupPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	g, err := h.groups.CreateGroup(r.Context(), session(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Get handles GET /api/groups/{id}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	g, err := h.groups.GetGroupByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if g == nil {
		writeError(w, h.logger, apperr.NotFound("group not found"))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Shared handles GET /api/shared/groups/{token}
func (h *GroupHandler) Shared(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.GetGroupByShareToken(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if g == nil {
		writeError(w, h.logger, apperr.NotFound("group not found"))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Update handles PUT /api/groups/{id}
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req model.GroupPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	g, err := h.groups.UpdateGroup(r.Context(), session(r), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Delete handles DELETE /api/groups/{id}
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.groups.DeleteGroup(r.Context(), session(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Copy handles POST /api/groups/{id}/copy
func (h *GroupHandler) Copy(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	g, err := h.groups.CopySharedGroup(r.Context(), session(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Participants handles GET /api/groups/{id}/participants
func (h *GroupHandler) Participants(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.participants.GetGroupParticipants(r.Context(), session(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateStatus handles PUT /api/groups/{id}/participants/status
func (h *GroupHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req service.StatusInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.participants.UpdateParticipantStatus(r.Context(), session(r), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Contributions handles POST /api/groups/{id}/contributions
func (h *GroupHandler) Contributions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.participants.CalculateContributions(r.Context(), session(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
