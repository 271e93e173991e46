package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// chunkFunc renders one stream element as a wire chunk. A nil token with
// finish set marks the terminal chunk.
type chunkFunc func(st *manager.TokenStream, tok *manager.Token, finish *string) types.StreamChunk

// completionChunk renders completion stream frames: token text rides in
// the choice's text field.
func completionChunk(st *manager.TokenStream, tok *manager.Token, finish *string) types.StreamChunk {
	choice := types.StreamChoice{FinishReason: finish}
	if tok != nil {
		choice.Text = tok.Text
		choice.Logprobs = tok.Logprobs.Result()
	}
	return types.StreamChunk{
		ID:      st.ID,
		Object:  types.ObjectTextCompletionChunk,
		Created: st.Created,
		Model:   st.Model,
		Choices: []types.StreamChoice{choice},
	}
}

// chatChunk renders chat stream frames in the delta shape. The first
// frame announces the assistant role.
func chatChunk() chunkFunc {
	announced := false
	return func(st *manager.TokenStream, tok *manager.Token, finish *string) types.StreamChunk {
		choice := types.StreamChoice{FinishReason: finish, Delta: &types.ChatDelta{}}
		if !announced {
			choice.Delta.Role = "assistant"
			announced = true
		}
		if tok != nil {
			choice.Delta.Content = tok.Text
			choice.Logprobs = tok.Logprobs.Result()
		}
		return types.StreamChunk{
			ID:      st.ID,
			Object:  types.ObjectChatCompletionChunk,
			Created: st.Created,
			Model:   st.Model,
			Choices: []types.StreamChoice{choice},
		}
	}
}

// streamSSE consumes a token stream and writes server-sent events: one
// `data: <json>` frame per chunk, a terminal frame carrying the finish
// reason, then `data: [DONE]`. The producer is canceled when the client
// goes away; mid-stream engine failures surface as an error frame
// because the status line is already on the wire.
func streamSSE(w http.ResponseWriter, r *http.Request, st *manager.TokenStream, chunk chunkFunc) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	} else {
		flush = func() {}
	}
	out := io.Writer(w)
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{})
	}

	defer st.Cancel()
	for tok := range st.Events() {
		if !writeFrame(out, chunk(st, &tok, nil), flush) {
			return
		}
	}
	if err := st.Err(); err != nil {
		if r.Context().Err() != nil {
			return
		}
		payload, _ := json.Marshal(types.ErrorResponse{
			Error: types.ErrorDetail{Message: err.Error(), Type: "engine_error", Code: http.StatusInternalServerError},
		})
		fmt.Fprintf(out, "data: %s\n\n", payload)
		flush()
		return
	}
	finish := st.FinishReason()
	if !writeFrame(out, chunk(st, nil, &finish), flush) {
		return
	}
	fmt.Fprint(out, "data: [DONE]\n\n")
	flush()
}

func writeFrame(out io.Writer, chunk types.StreamChunk, flush func()) bool {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(out, "data: %s\n\n", payload); err != nil {
		return false
	}
	flush()
	return true
}
