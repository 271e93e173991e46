package httpapi

import (
	"net/http"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// handleModels serves GET /v1/models: the active model first, then the
// catalog and cache.
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{
			Object: types.ObjectList,
			Data:   svc.Models(),
		})
	}
}

// handleModelLoad serves POST /v1/models/load. Gated behind --reload so a
// production daemon cannot be re-pointed at another artifact remotely.
func handleModelLoad(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !reloadEnabled {
			writeJSONError(w, http.StatusForbidden, "model loading is disabled; start the daemon with --reload", "reload_disabled")
			return
		}
		var req types.LoadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		err := svc.Load(ctx, manager.ResolveRequest{
			Model:     req.Model,
			Kind:      req.Kind,
			LocalPath: req.LocalPath,
			HF:        req.HF,
			Projector: req.Projector,
			CtxLen:    req.CtxLen,
		})
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeError(w, err)
			return
		}
		info, _ := svc.Info()
		writeJSON(w, http.StatusOK, info)
	}
}
