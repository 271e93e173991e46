package httpapi

import (
	"net/http"
	"os"

	"inferd/pkg/types"
)

// handleTxt2Img serves POST /v1/txt2img.
func handleTxt2Img(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ImageGenerationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		resp, err := svc.Txt2Img(ctx, req)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleImg2Img serves POST /v1/img2img. The init image arrives either as
// a multipart upload (field "image") or, in the Python-era JSON shape, as
// an image_path the daemon reads locally.
func handleImg2Img(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			req  types.ImageGenerationRequest
			init []byte
		)
		switch {
		case hasContentType(r, "multipart/form-data"):
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
			if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid multipart body", "invalid_request_error")
				return
			}
			data, _, err := readFormFile(r, "image")
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "multipart field \"image\" is required", "invalid_request_error")
				return
			}
			init = data
			if !imageParamsFromForm(w, r, &req) {
				return
			}
		case hasContentType(r, "application/json"):
			if !decodeJSON(w, r, &req) {
				return
			}
			if req.ImagePath == "" {
				writeJSONError(w, http.StatusBadRequest, "image_path is required", "invalid_request_error")
				return
			}
			data, err := os.ReadFile(req.ImagePath)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "init image not readable: "+err.Error(), "invalid_request_error")
				return
			}
			init = data
		default:
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json or multipart/form-data", "invalid_request_error")
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()
		resp, err := svc.Img2Img(ctx, init, req)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// imageParamsFromForm fills req from multipart/query fields. Returns
// false after writing an error response for an unparseable value.
func imageParamsFromForm(w http.ResponseWriter, r *http.Request, req *types.ImageGenerationRequest) bool {
	req.Prompt = paramValue(r, "prompt")
	req.NegativePrompt = paramValue(r, "negative_prompt")

	var err error
	bad := func(field string) bool {
		writeJSONError(w, http.StatusBadRequest, "invalid value for "+field, "invalid_request_error")
		return false
	}
	if req.CfgScale, err = paramFloat32(r, "cfg_scale"); err != nil {
		return bad("cfg_scale")
	}
	if req.Width, err = paramInt(r, "width"); err != nil {
		return bad("width")
	}
	if req.Height, err = paramInt(r, "height"); err != nil {
		return bad("height")
	}
	if req.SampleSteps, err = paramInt(r, "sample_steps"); err != nil {
		return bad("sample_steps")
	}
	if req.Strength, err = paramFloat32(r, "strength"); err != nil {
		return bad("strength")
	}
	seed, err := paramInt64(r, "seed")
	if err != nil {
		return bad("seed")
	}
	if seed != nil {
		req.Seed = *seed
	}
	return true
}
