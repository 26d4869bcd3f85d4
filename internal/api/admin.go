package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/rewear/rewear/internal/model"
	"github.com/rewear/rewear/internal/store"
)

// AdminHandler handles moderation endpoints.
type AdminHandler struct {
	DB *sql.DB
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

// Dashboard handles GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	d, err := store.GetDashboard(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err, "get dashboard")
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// Items handles GET /api/admin/items?status=pending|approved|rejected.
func (h *AdminHandler) Items(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseItemFilter(q)
	if err != nil {
		writeError(w, r, err, "list items")
		return
	}

	page, err := store.ListAdminItems(r.Context(), h.DB, model.ModerationStatus(q.Get("status")), f)
	if err != nil {
		writeError(w, r, err, "list items")
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Approve handles POST /api/admin/items/{id}/approve.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.ApproveItem(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		writeError(w, r, err, "approve item")
		return
	}

	slog.Info("item approved", "user", claims.Username, "item", item.ID)
	jsonResponse(w, http.StatusOK, item)
}

// Reject handles POST /api/admin/items/{id}/reject.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	var req moderationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.RejectItem(r.Context(), h.DB, claims.UserID, id, req.Reason)
	if err != nil {
		writeError(w, r, err, "reject item")
		return
	}

	slog.Info("item rejected", "user", claims.Username, "item", item.ID, "reason", item.Moderation.Reason)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/admin/items/{id}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if err := store.DeleteItem(r.Context(), h.DB, claims.UserID, id); err != nil {
		writeError(w, r, err, "delete item")
		return
	}

	slog.Info("item removed by admin", "user", claims.Username, "item", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
