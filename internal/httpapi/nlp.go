package httpapi

import (
	"net/http"

	"inferd/pkg/types"
)

// handleCompletions serves POST /v1/completions. Streaming requests get
// server-sent events; otherwise the producer is drained into one reply.
func handleCompletions(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CompletionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		st, err := svc.Completion(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}
		if req.Stream {
			streamSSE(w, r, st, completionChunk)
			return
		}
		res, err := st.Drain()
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.CompletionResponse{
			ID:      st.ID,
			Object:  types.ObjectTextCompletion,
			Created: st.Created,
			Model:   st.Model,
			Choices: []types.CompletionChoice{{
				Text:         res.Content,
				Index:        0,
				Logprobs:     res.Logprobs.Result(),
				FinishReason: res.FinishReason,
			}},
		})
	}
}

// handleChatCompletions serves POST /v1/chat/completions.
func handleChatCompletions(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		st, err := svc.Chat(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}
		if req.Stream {
			streamSSE(w, r, st, chatChunk())
			return
		}
		res, err := st.Drain()
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ChatResponse{
			ID:      st.ID,
			Object:  types.ObjectChatCompletion,
			Created: st.Created,
			Model:   st.Model,
			Choices: []types.ChatChoice{{
				Index:        0,
				Message:      types.ChatMessage{Role: "assistant", Content: res.Content},
				Logprobs:     res.Logprobs.Result(),
				FinishReason: res.FinishReason,
			}},
		})
	}
}

// handleFunctionCalling serves POST /v1/function-calling: one
// non-streamed generation against the supplied tool schemas, parsed into
// structured tool calls.
func handleFunctionCalling(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.FunctionCallRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		resp, err := svc.FunctionCall(ctx, req)
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
