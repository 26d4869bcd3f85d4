package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rewear/rewear/internal/model"
	"github.com/rewear/rewear/internal/store"
)

// ItemsHandler handles listing endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

// parseItemFilter reads catalog filters from the query string.
func parseItemFilter(q url.Values) (model.ItemFilter, error) {
	f := model.ItemFilter{
		Search:    q.Get("search"),
		Category:  model.Category(q.Get("category")),
		Size:      model.Size(q.Get("size")),
		Condition: model.Condition(q.Get("condition")),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if f.Category != "" && !f.Category.Valid() {
		return f, model.Errorf(model.KindInvalid, "invalid category %q", f.Category)
	}
	if f.Size != "" && !f.Size.Valid() {
		return f, model.Errorf(model.KindInvalid, "invalid size %q", f.Size)
	}
	if f.Condition != "" && !f.Condition.Valid() {
		return f, model.Errorf(model.KindInvalid, "invalid condition %q", f.Condition)
	}

	ints := []struct {
		key string
		dst *int64
	}{
		{"min_points", &f.MinPoints},
		{"max_points", &f.MaxPoints},
		{"owner_id", &f.OwnerID},
	}
	for _, p := range ints {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return f, model.Errorf(model.KindInvalid, "invalid %s", p.key)
			}
			*p.dst = n
		}
	}
	for key, dst := range map[string]*int{"page": &f.Page, "limit": &f.Limit} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, model.Errorf(model.KindInvalid, "invalid %s", key)
			}
			*dst = n
		}
	}
	return f, nil
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseItemFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "list items")
		return
	}

	page, err := store.ListCatalog(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err, "list items")
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// decodeItemInput decodes and validates a listing body, writing the response
// on failure.
func decodeItemInput(w http.ResponseWriter, r *http.Request) (model.ItemInput, bool) {
	var in model.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return in, false
	}
	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		validationError(w, errs)
		return in, false
	}
	return in, true
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeItemInput(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.CreateItem(r.Context(), h.DB, claims.UserID, in)
	if err != nil {
		writeError(w, r, err, "create item")
		return
	}

	slog.Info("item listed", "user", claims.Username, "item", item.ID, "title", item.Title)
	jsonResponse(w, http.StatusCreated, item)
}

// visible reports whether the caller may see the item. Listings that are not
// approved, and deleted ones, are shown only to their owner and to admins.
func visible(item *model.Item, userID int64, role string) bool {
	if item.DeletedAt == nil && item.Moderation.Status == model.ModerationApproved {
		return true
	}
	return item.OwnerID == userID || role == model.RoleAdmin
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.GetItemForViewer(r.Context(), h.DB, id, claims.UserID)
	if err != nil {
		writeError(w, r, err, "get item")
		return
	}
	if !visible(item, claims.UserID, claims.Role) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	counted, err := store.RecordView(r.Context(), h.DB, id, claims.UserID)
	if err != nil {
		writeError(w, r, err, "get item")
		return
	}
	if counted {
		item.Views++
	}
	jsonResponse(w, http.StatusOK, item)
}

type likeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// Like handles POST /api/items/{id}/like, toggling the caller's like.
func (h *ItemsHandler) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	liked, likes, err := store.ToggleLike(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		writeError(w, r, err, "like item")
		return
	}
	jsonResponse(w, http.StatusOK, likeResponse{Liked: liked, Likes: likes})
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}
	in, ok := decodeItemInput(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.UpdateItem(r.Context(), h.DB, claims.UserID, id, in)
	if err != nil {
		writeError(w, r, err, "update item")
		return
	}

	slog.Info("item updated", "user", claims.Username, "item", item.ID)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if err := store.DeleteOwnItem(r.Context(), h.DB, claims.UserID, id); err != nil {
		writeError(w, r, err, "delete item")
		return
	}

	slog.Info("item deleted", "user", claims.Username, "item", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
