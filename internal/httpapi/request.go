package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// decodeJSON enforces content type and size limits on JSON endpoints and
// decodes the body into dst. On failure the error response is already
// written and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !hasContentType(r, "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", "invalid_request_error")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error")
		return false
	}
	return true
}

func hasContentType(r *http.Request, want string) bool {
	ct := r.Header.Get("Content-Type")
	return ct != "" && strings.HasPrefix(strings.ToLower(ct), want)
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readFormFile pulls one uploaded file out of a multipart request.
// Returns the content and the client-side filename.
func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, hdr.Filename, nil
}

// paramValue reads a request parameter from the query string first, then
// the form body. The Python-era API took tuning knobs as query params on
// multipart endpoints; form fields are accepted as the natural spelling.
func paramValue(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return r.FormValue(key)
}

func paramInt(r *http.Request, key string) (*int, error) {
	v := paramValue(r, key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func paramInt64(r *http.Request, key string) (*int64, error) {
	v := paramValue(r, key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func paramFloat32(r *http.Request, key string) (*float32, error) {
	v := paramValue(r, key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return nil, err
	}
	f32 := float32(f)
	return &f32, nil
}
