package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/service"
)

type NotificationHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewNotificationHandler(svc *service.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
}

// Me handles GET /api/me
func (h *NotificationHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), callerFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// List handles GET /api/notifications?unread=true&limit=N
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unreadOnly := false
	if v := q.Get("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "invalid unread")
			return
		}
		unreadOnly = b
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	c := callerFrom(r)
	notifications, err := h.svc.ListNotifications(r.Context(), c, unreadOnly, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	unread, err := h.svc.UnreadCount(r.Context(), c)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: notifications, UnreadCount: unread})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	n, err := h.svc.MarkRead(r.Context(), callerFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllRead(r.Context(), callerFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Delete handles DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.svc.DeleteNotification(r.Context(), callerFrom(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
