package httpapi

import (
	"encoding/json"
	"net/http"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// writeError maps the manager error taxonomy to HTTP statuses. This is
// the single place a manager error becomes a wire status.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case manager.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
	case manager.IsModelNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error(), "not_found_error")
	case manager.IsNotLoaded(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error(), "model_not_loaded")
	case manager.IsTooBusy(err):
		IncrementBackpressure("queue")
		writeJSONError(w, http.StatusTooManyRequests, err.Error(), "too_busy_error")
	case manager.IsDependencyUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error(), "dependency_unavailable")
	case manager.IsEngine(err):
		writeJSONError(w, http.StatusInternalServerError, err.Error(), "engine_error")
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error(), "internal_error")
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error: types.ErrorDetail{Message: msg, Type: errType, Code: status},
	})
}
