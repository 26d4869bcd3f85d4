package api

import (
	"database/sql"
	"net/http"

	"github.com/rewear/rewear/internal/store"
)

// TransfersHandler serves the settlement ledger.
type TransfersHandler struct {
	DB *sql.DB
}

// ItemHistory handles GET /api/items/{id}/history.
func (h *TransfersHandler) ItemHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "get item history")
		return
	}
	claims := GetClaims(r.Context())
	if !visible(item, claims.UserID, claims.Role) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	transfers, err := store.GetItemHistory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "get item history")
		return
	}
	jsonResponse(w, http.StatusOK, transfers)
}

// MyActivity handles GET /api/me/activity: every transfer to or from the
// caller, newest first.
func (h *TransfersHandler) MyActivity(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	transfers, err := store.ListTransfers(r.Context(), h.DB, 0, claims.UserID)
	if err != nil {
		writeError(w, r, err, "list activity")
		return
	}
	jsonResponse(w, http.StatusOK, transfers)
}
