package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/shopassist/internal/apperr"
	"github.com/dukerupert/shopassist/internal/push"
	"github.com/dukerupert/shopassist/internal/service"
)

type PushHandler struct {
	svc    *service.Service
	push   *push.Service
	logger *slog.Logger
}

func NewPushHandler(svc *service.Service, pushSvc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{svc: svc, push: pushSvc, logger: logger}
}

// subscribeRequest mirrors the browser's PushSubscription.toJSON() plus a
// device label.
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.svc.Subscribe(r.Context(), callerFrom(r), service.PushSubscriptionInput{
		Endpoint:   req.Endpoint,
		P256dh:     req.Keys.P256dh,
		Auth:       req.Keys.Auth,
		DeviceName: req.DeviceName,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.ListSubscriptions(r.Context(), callerFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.svc.Unsubscribe(r.Context(), callerFrom(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.push.Configured() {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "push notifications are not configured", Kind: string(apperr.KindNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.push.VAPIDPublicKey()})
}
