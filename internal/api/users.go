package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rewear/rewear/internal/model"
	"github.com/rewear/rewear/internal/store"
)

// UsersHandler handles account endpoints: the caller's own account and
// admin user management.
type UsersHandler struct {
	DB *sql.DB
}

type updateUserRequest struct {
	Role string `json:"role"`
}

// Me handles GET /api/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err, "get account")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/me/profile.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in model.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		validationError(w, errs)
		return
	}

	claims := GetClaims(r.Context())
	user, err := store.UpdateProfile(r.Context(), h.DB, claims.UserID, in)
	if err != nil {
		writeError(w, r, err, "update profile")
		return
	}

	slog.Info("profile updated", "user", claims.Username, "username", user.Username)
	jsonResponse(w, http.StatusOK, user)
}

// Profile handles GET /api/profiles/{username}.
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := store.GetProfile(r.Context(), h.DB, r.PathValue("username"))
	if err != nil {
		writeError(w, r, err, "get profile")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Stats handles GET /api/me/stats.
func (h *UsersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	stats, err := store.GetUserStats(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err, "get stats")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// MyItems handles GET /api/me/items.
func (h *UsersHandler) MyItems(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	items, err := store.ListOwnerItems(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err, "list items")
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err, "list users")
		return
	}
	jsonResponse(w, http.StatusOK, users)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "get user")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id && req.Role != model.RoleAdmin {
		jsonError(w, http.StatusBadRequest, "cannot demote yourself")
		return
	}

	user, err := store.UpdateUserRole(r.Context(), h.DB, id, req.Role)
	if err != nil {
		writeError(w, r, err, "update user")
		return
	}

	slog.Info("user role updated", "user", claims.Username, "target_user", user.Username, "new_role", user.Role)
	jsonResponse(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	targetName := fmt.Sprintf("id:%d", id)
	if target, err := store.GetUser(r.Context(), h.DB, id); err == nil {
		targetName = target.Username
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err, "delete user")
		return
	}

	slog.Info("user deleted", "user", claims.Username, "deleted_user", targetName)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
