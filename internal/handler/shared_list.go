package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/shopassist/internal/service"
)

type SharedListHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewSharedListHandler(svc *service.Service, logger *slog.Logger) *SharedListHandler {
	return &SharedListHandler{svc: svc, logger: logger}
}

type listRequest struct {
	Name string `json:"name"`
}

type addItemRequest struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	Quantity    *int   `json:"quantity"`
	Notes       string `json:"notes"`
}

type updateItemRequest struct {
	ProductName *string `json:"product_name"`
	Category    *string `json:"category"`
	Quantity    *int    `json:"quantity"`
	Notes       *string `json:"notes"`
}

// ListForFamily handles GET /api/families/{id}/lists
func (h *SharedListHandler) ListForFamily(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	lists, err := h.svc.ListSharedLists(r.Context(), callerFrom(r), familyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// Create handles POST /api/families/{id}/lists
func (h *SharedListHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	list, err := h.svc.CreateSharedList(r.Context(), callerFrom(r), familyID, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

// Get handles GET /api/lists/{id}
func (h *SharedListHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	list, err := h.svc.GetSharedList(r.Context(), callerFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Update handles PUT /api/lists/{id}
func (h *SharedListHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	list, err := h.svc.UpdateSharedList(r.Context(), callerFrom(r), id, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Delete handles DELETE /api/lists/{id}
func (h *SharedListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.svc.DeleteSharedList(r.Context(), callerFrom(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Item handlers ---

// ListItems handles GET /api/lists/{id}/items
func (h *SharedListHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	listID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	items, err := h.svc.ListItems(r.Context(), callerFrom(r), listID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// AddItem handles POST /api/lists/{id}/items
func (h *SharedListHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	listID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.svc.AddItem(r.Context(), callerFrom(r), listID, service.ItemInput{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Category:    req.Category,
		Quantity:    req.Quantity,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /api/lists/{id}/items/{item_id}
func (h *SharedListHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	listID, itemID, ok := itemParams(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.svc.UpdateItem(r.Context(), callerFrom(r), listID, itemID, service.ItemUpdate{
		ProductName: req.ProductName,
		Category:    req.Category,
		Quantity:    req.Quantity,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /api/lists/{id}/items/{item_id}
func (h *SharedListHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	listID, itemID, ok := itemParams(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveItem(r.Context(), callerFrom(r), listID, itemID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleChecked handles POST /api/lists/{id}/items/{item_id}/check
func (h *SharedListHandler) ToggleChecked(w http.ResponseWriter, r *http.Request) {
	listID, itemID, ok := itemParams(w, r)
	if !ok {
		return
	}
	item, err := h.svc.ToggleItemChecked(r.Context(), callerFrom(r), listID, itemID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ClearChecked handles POST /api/lists/{id}/clear-checked
func (h *SharedListHandler) ClearChecked(w http.ResponseWriter, r *http.Request) {
	listID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	n, err := h.svc.ClearCheckedItems(r.Context(), callerFrom(r), listID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func itemParams(w http.ResponseWriter, r *http.Request) (listID, itemID int64, ok bool) {
	listID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return 0, 0, false
	}
	itemID, err = parsePathID(r, "item_id")
	if err != nil {
		badRequest(w, err.Error())
		return 0, 0, false
	}
	return listID, itemID, true
}
