package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/service"
)

type InvitationHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewInvitationHandler(svc *service.Service, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{svc: svc, logger: logger}
}

type invitationRequest struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type respondRequest struct {
	Action string `json:"action"`
}

// ListForFamily handles GET /api/families/{id}/invitations
func (h *InvitationHandler) ListForFamily(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	invs, err := h.svc.ListFamilyInvitations(r.Context(), callerFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

// Create handles POST /api/families/{id}/invitations
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req invitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CreateInvitation(r.Context(), callerFrom(r), id, req.Email, req.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// ListMine handles GET /api/invitations
func (h *InvitationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	invs, err := h.svc.ListMyInvitations(r.Context(), callerFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

// Respond handles POST /api/invitations/{id}/respond
func (h *InvitationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.RespondToInvitation(r.Context(), callerFrom(r), id, req.Action)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Cancel handles DELETE /api/invitations/{id}
func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.svc.CancelInvitation(r.Context(), callerFrom(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview handles GET /invitations/{id}/preview?token=. It is public.
func (h *InvitationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	preview, err := h.svc.PreviewInvitation(r.Context(), id, r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}
