package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftpool/internal/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
	groups        *service.GroupService
	logger        *slog.Logger
}

func NewNotificationHandler(ns *service.NotificationService, gs *service.GroupService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: ns, groups: gs, logger: logger}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.notifications.GetActiveNotifications(r.Context(), session(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.GetUnreadCount(r.Context(), session(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	changed, err := h.notifications.MarkAsRead(r.Context(), session(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": changed})
}

// Archive handles POST /api/notifications/{id}/archive
func (h *NotificationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	changed, err := h.notifications.ArchiveNotification(r.Context(), session(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": changed})
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllAsRead(r.Context(), session(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// Accept handles POST /api/notifications/{id}/accept
func (h *NotificationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	g, err := h.groups.AcceptGroupInvitation(r.Context(), session(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Broadcast handles POST /api/admin/notifications/broadcast
func (h *NotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req service.NotificationInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	created, err := h.notifications.Broadcast(r.Context(), session(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"sent": len(created)})
}

// SendToUser handles POST /api/admin/notifications/user
func (h *NotificationHandler) SendToUser(w http.ResponseWriter, r *http.Request) {
	var req service.DirectNotificationInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	n, err := h.notifications.SendToUser(r.Context(), session(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Latest handles GET /api/admin/notifications/latest?user_id=
func (h *NotificationHandler) Latest(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.Latest(r.Context(), session(r), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notification": n})
}
