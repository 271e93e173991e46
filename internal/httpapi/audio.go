package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// handleTranscription serves POST /v1/audio/transcriptions and, with
// translate set, POST /v1/audio/translations. The upload is staged in a
// temp file that is removed on every path.
func handleTranscription(svc Service, translate bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hasContentType(r, "multipart/form-data") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be multipart/form-data", "invalid_request_error")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid multipart body", "invalid_request_error")
			return
		}

		params := manager.SpeechParams{Translate: translate}
		if beam, err := paramInt(r, "beam_size"); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid value for beam_size", "invalid_request_error")
			return
		} else if beam != nil {
			params.BeamSize = *beam
		}
		if temp, err := paramFloat32(r, "temperature"); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid value for temperature", "invalid_request_error")
			return
		} else if temp != nil {
			params.Temperature = *temp
		}
		if !translate {
			params.Language = paramValue(r, "language")
		}

		path, ok := stageUpload(w, r)
		if !ok {
			return
		}
		defer os.Remove(path)

		ctx, cancel := requestContext(r)
		defer cancel()
		text, err := svc.Transcribe(ctx, path, params)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.TranscriptionResponse{Text: text})
	}
}

// stageUpload copies the multipart "file" field into a temp file and
// returns its path. The caller owns removal.
func stageUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "multipart field \"file\" is required", "invalid_request_error")
		return "", false
	}
	defer f.Close()

	tmp, err := os.CreateTemp("", "inferd-audio-*"+filepath.Ext(hdr.Filename))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "staging upload: "+err.Error(), "internal_error")
		return "", false
	}
	_, err = io.Copy(tmp, f)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		writeJSONError(w, http.StatusInternalServerError, "staging upload: "+err.Error(), "internal_error")
		return "", false
	}
	return tmp.Name(), true
}
