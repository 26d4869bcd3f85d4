package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/rewear/rewear/internal/imaging"
	"github.com/rewear/rewear/internal/store"
)

// Multipart fields carrying listing photos and the profile picture.
const (
	uploadField = "images"
	avatarField = "avatar"
)

// UploadsHandler stores listing photos and serves them back.
type UploadsHandler struct {
	DB        *sql.DB
	Processor imaging.Processor
	MaxFiles  int
}

type uploadResponse struct {
	URLs []string `json:"urls"`
}

// Upload handles POST /api/uploads. Each file in the "images" field is
// processed and stored; the response lists their URLs in upload order.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxFile := h.maxBytes()
	// Room for every file plus multipart overhead.
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.MaxFiles)*maxFile+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "upload too large or invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		jsonError(w, http.StatusBadRequest, "at least one image required")
		return
	}
	if len(files) > h.MaxFiles {
		jsonError(w, http.StatusBadRequest, "too many images")
		return
	}

	claims := GetClaims(r.Context())
	resp := uploadResponse{URLs: make([]string, 0, len(files))}
	for _, fh := range files {
		url, ok := h.saveUpload(w, r, fh, maxFile)
		if !ok {
			return
		}
		resp.URLs = append(resp.URLs, url)
	}

	slog.Info("images uploaded", "user", claims.Username, "count", len(resp.URLs))
	jsonResponse(w, http.StatusCreated, resp)
}

// Avatar handles POST /api/me/avatar. The single file in the "avatar"
// field replaces the caller's profile picture.
func (h *UploadsHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	maxFile := h.maxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxFile+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "upload too large or invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[avatarField]
	if len(files) != 1 {
		jsonError(w, http.StatusBadRequest, "exactly one avatar image required")
		return
	}

	url, ok := h.saveUpload(w, r, files[0], maxFile)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	user, err := store.SetAvatar(r.Context(), h.DB, claims.UserID, url)
	if err != nil {
		writeError(w, r, err, "set avatar")
		return
	}

	slog.Info("avatar updated", "user", claims.Username)
	jsonResponse(w, http.StatusOK, user)
}

func (h *UploadsHandler) maxBytes() int64 {
	if h.Processor.MaxBytes <= 0 {
		return imaging.DefaultMaxBytes
	}
	return h.Processor.MaxBytes
}

// saveUpload processes one uploaded file and saves it, returning its URL. On
// failure the response has already been written.
func (h *UploadsHandler) saveUpload(w http.ResponseWriter, r *http.Request, fh *multipart.FileHeader, maxFile int64) (string, bool) {
	if fh.Size > maxFile {
		jsonError(w, http.StatusBadRequest, fh.Filename+": image too large")
		return "", false
	}
	f, err := fh.Open()
	if err != nil {
		writeError(w, r, err, "read upload")
		return "", false
	}
	result, err := h.Processor.Process(f)
	f.Close()
	if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusBadRequest, fh.Filename+": "+err.Error())
		return "", false
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, fh.Filename+": invalid image")
		return "", false
	}

	claims := GetClaims(r.Context())
	key, err := store.SaveImage(r.Context(), h.DB, result.Data, result.MIME, claims.UserID)
	if err != nil {
		writeError(w, r, err, "save image")
		return "", false
	}
	return "/images/" + key, true
}

// Serve handles GET /images/{key}.
func (h *UploadsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	img, err := store.GetImage(r.Context(), h.DB, r.PathValue("key"))
	if err != nil {
		writeError(w, r, err, "get image")
		return
	}

	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(img.Data)
}
