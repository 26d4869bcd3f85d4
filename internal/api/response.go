package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rewear/rewear/internal/model"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error     string            `json:"error"`
	Kind      model.ErrorKind   `json:"kind,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorResponse{Error: message})
}

// kindStatus maps domain error kinds to HTTP statuses.
var kindStatus = map[model.ErrorKind]int{
	model.KindNotFound:            http.StatusNotFound,
	model.KindInvalid:             http.StatusBadRequest,
	model.KindConflict:            http.StatusConflict,
	model.KindNotAuthorized:       http.StatusForbidden,
	model.KindInvalidTransition:   http.StatusConflict,
	model.KindItemUnavailable:     http.StatusConflict,
	model.KindItemHasActiveSwap:   http.StatusConflict,
	model.KindSelfSwap:            http.StatusUnprocessableEntity,
	model.KindInsufficientPoints:  http.StatusUnprocessableEntity,
	model.KindInvalidOfferedItems: http.StatusUnprocessableEntity,
	model.KindBalanceOverflow:     http.StatusUnprocessableEntity,
	model.KindSettlementFailed:    http.StatusServiceUnavailable,
}

// writeError writes err as a JSON error. Domain errors keep their message
// and kind; anything else is logged and reported as "failed to <action>".
func writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	kind := model.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		slog.Error("failed to "+action, "error", err, "method", r.Method, "path", r.URL.Path)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
		return
	}
	if kind == model.KindSettlementFailed {
		slog.Warn("settlement failed", "error", err, "path", r.URL.Path)
	}
	jsonResponse(w, status, errorResponse{
		Error:     err.Error(),
		Kind:      kind,
		Retryable: model.IsRetryable(err),
	})
}

// validationError writes a 400 with per-field messages.
func validationError(w http.ResponseWriter, fields map[string]string) {
	jsonResponse(w, http.StatusBadRequest, errorResponse{
		Error:  "validation failed",
		Kind:   model.KindInvalid,
		Fields: fields,
	})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(target)
}

// pathID parses the {id} path value, writing a 400 if it is not a positive
// integer.
func pathID(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}
