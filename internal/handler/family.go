package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/service"
)

type FamilyHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewFamilyHandler(svc *service.Service, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{svc: svc, logger: logger}
}

type familyRequest struct {
	Name string `json:"name"`
}

type memberRoleRequest struct {
	Role model.Role `json:"role"`
}

// List handles GET /api/families
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.svc.ListFamilies(r.Context(), callerFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

// Create handles POST /api/families
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	family, err := h.svc.CreateFamily(r.Context(), callerFrom(r), req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, family)
}

// Get handles GET /api/families/{id}
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	family, err := h.svc.GetFamily(r.Context(), callerFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// Update handles PUT /api/families/{id}
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req familyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	family, err := h.svc.UpdateFamily(r.Context(), callerFrom(r), id, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// Delete handles DELETE /api/families/{id}
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.svc.DeleteFamily(r.Context(), callerFrom(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /api/families/{id}/members
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	members, err := h.svc.ListMembers(r.Context(), callerFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// UpdateMemberRole handles PUT /api/families/{id}/members/{user_id}
func (h *FamilyHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req memberRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	member, err := h.svc.UpdateMemberRole(r.Context(), callerFrom(r), id, r.PathValue("user_id"), req.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /api/families/{id}/members/{user_id}. Members
// leave a family by removing themselves.
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.svc.RemoveMember(r.Context(), callerFrom(r), id, r.PathValue("user_id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
