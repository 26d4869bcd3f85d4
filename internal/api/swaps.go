package api

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/rewear/rewear/internal/model"
	"github.com/rewear/rewear/internal/store"
)

// SwapsHandler handles swap negotiation endpoints.
type SwapsHandler struct {
	DB *sql.DB
}

type createSwapRequest struct {
	ItemID         int64          `json:"item_id"`
	Mode           model.SwapMode `json:"mode"`
	OfferedItemIDs []int64        `json:"offered_item_ids"`
	Message        string         `json:"message"`
}

type rejectSwapRequest struct {
	Reason string `json:"reason"`
}

type rateSwapRequest struct {
	Score int `json:"score"`
}

// Create handles POST /api/swaps.
func (h *SwapsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id required")
		return
	}

	claims := GetClaims(r.Context())
	s, err := store.CreateSwap(r.Context(), h.DB, claims.UserID, req.ItemID, req.Mode, req.OfferedItemIDs, req.Message)
	if err != nil {
		writeError(w, r, err, "create swap")
		return
	}

	slog.Info("swap requested", "user", claims.Username, "swap", s.ID, "item", s.RequestedItemID, "mode", s.Mode)
	jsonResponse(w, http.StatusCreated, s)
}

// List handles GET /api/swaps?direction=sent|received&status=...
func (h *SwapsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	q := r.URL.Query()
	swaps, err := store.ListSwaps(r.Context(), h.DB, model.SwapFilter{
		UserID:    claims.UserID,
		Direction: q.Get("direction"),
		Status:    model.SwapStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, r, err, "list swaps")
		return
	}
	jsonResponse(w, http.StatusOK, swaps)
}

// Get handles GET /api/swaps/{id}. Only the parties and admins can see a swap.
func (h *SwapsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "swap")
	if !ok {
		return
	}

	s, err := store.GetSwap(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "get swap")
		return
	}
	claims := GetClaims(r.Context())
	if !s.Party(claims.UserID) && claims.Role != model.RoleAdmin {
		jsonError(w, http.StatusNotFound, "swap not found")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Accept handles POST /api/swaps/{id}/accept.
func (h *SwapsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "swap")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	s, err := store.AcceptSwap(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		writeError(w, r, err, "accept swap")
		return
	}

	if s.Status == model.SwapRejected {
		slog.Info("swap auto-rejected", "user", claims.Username, "swap", s.ID, "reason", s.Reason)
	} else {
		slog.Info("swap accepted", "user", claims.Username, "swap", s.ID)
	}
	jsonResponse(w, http.StatusOK, s)
}

// Reject handles POST /api/swaps/{id}/reject. The body is optional.
func (h *SwapsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "swap")
	if !ok {
		return
	}

	var req rejectSwapRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	s, err := store.RejectSwap(r.Context(), h.DB, claims.UserID, id, req.Reason)
	if err != nil {
		writeError(w, r, err, "reject swap")
		return
	}

	slog.Info("swap rejected", "user", claims.Username, "swap", s.ID)
	jsonResponse(w, http.StatusOK, s)
}

// Cancel handles POST /api/swaps/{id}/cancel.
func (h *SwapsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "swap")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	s, err := store.CancelSwap(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		writeError(w, r, err, "cancel swap")
		return
	}

	slog.Info("swap cancelled", "user", claims.Username, "swap", s.ID)
	jsonResponse(w, http.StatusOK, s)
}

// Complete handles POST /api/swaps/{id}/complete. Either party may confirm
// completion.
func (h *SwapsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "swap")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	s, err := store.GetSwap(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "complete swap")
		return
	}
	if !s.Party(claims.UserID) {
		writeError(w, r, model.Errorf(model.KindNotAuthorized, "only swap parties can complete"), "complete swap")
		return
	}

	s, err = store.CompleteSwap(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "complete swap")
		return
	}

	slog.Info("swap completed", "user", claims.Username, "swap", s.ID, "mode", s.Mode, "points", s.PointsOffered)
	jsonResponse(w, http.StatusOK, s)
}

// Rate handles POST /api/swaps/{id}/rate.
func (h *SwapsHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "swap")
	if !ok {
		return
	}

	var req rateSwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	rating, err := store.RateSwap(r.Context(), h.DB, claims.UserID, id, req.Score)
	if err != nil {
		writeError(w, r, err, "rate swap")
		return
	}

	slog.Info("swap rated", "user", claims.Username, "swap", id, "score", rating.Score)
	jsonResponse(w, http.StatusCreated, rating)
}
