package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

func tokenRun(words ...string) []manager.Token {
	toks := make([]manager.Token, len(words))
	for i, w := range words {
		toks[i] = manager.Token{Text: w}
	}
	return toks
}

// decodeChunks parses every frame except the [DONE] sentinel.
func decodeChunks(t *testing.T, frames []string) []types.StreamChunk {
	t.Helper()
	var chunks []types.StreamChunk
	for _, f := range frames {
		if f == "[DONE]" {
			continue
		}
		var c types.StreamChunk
		if err := json.Unmarshal([]byte(f), &c); err != nil {
			t.Fatalf("decode chunk %q: %v", f, err)
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func TestCompletionDrainMatchesStream(t *testing.T) {
	h := newTextAPI(t, tokenRun("Once", " upon", " a", " time"))

	plain := postJSON(t, h, "/v1/completions", types.CompletionRequest{Prompt: "story"})
	if plain.Code != http.StatusOK {
		t.Fatalf("completion = %d %s", plain.Code, plain.Body.String())
	}
	res := decodeBody[types.CompletionResponse](t, plain)
	if len(res.Choices) != 1 {
		t.Fatalf("choices = %+v", res.Choices)
	}
	if res.Object != types.ObjectTextCompletion {
		t.Fatalf("object = %q", res.Object)
	}

	streamed := postJSON(t, h, "/v1/completions", types.CompletionRequest{Prompt: "story", Stream: true})
	if streamed.Code != http.StatusOK {
		t.Fatalf("stream = %d %s", streamed.Code, streamed.Body.String())
	}
	if ct := streamed.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("stream content type = %q", ct)
	}

	var got strings.Builder
	chunks := decodeChunks(t, drainSSE(t, streamed.Body))
	for _, c := range chunks {
		got.WriteString(c.Choices[0].Text)
		if c.Object != types.ObjectTextCompletionChunk {
			t.Fatalf("chunk object = %q", c.Object)
		}
	}
	if got.String() != res.Choices[0].Text {
		t.Fatalf("stream concat %q != drained %q", got.String(), res.Choices[0].Text)
	}
	if got.String() != "Once upon a time" {
		t.Fatalf("content = %q", got.String())
	}
}

func TestCompletionStreamFraming(t *testing.T) {
	h := newTextAPI(t, tokenRun("a", "b"))
	rr := postJSON(t, h, "/v1/completions", types.CompletionRequest{Prompt: "p", Stream: true})
	frames := drainSSE(t, rr.Body)
	if len(frames) != 4 {
		t.Fatalf("frames = %d: %v", len(frames), frames)
	}
	if frames[len(frames)-1] != "[DONE]" {
		t.Fatalf("missing DONE sentinel: %v", frames)
	}
	chunks := decodeChunks(t, frames)
	terminal := chunks[len(chunks)-1]
	if terminal.Choices[0].FinishReason == nil || *terminal.Choices[0].FinishReason != types.FinishStop {
		t.Fatalf("terminal chunk = %+v", terminal.Choices[0])
	}
	if terminal.Choices[0].Text != "" {
		t.Fatalf("terminal chunk carries text: %+v", terminal.Choices[0])
	}
	for _, c := range chunks[:len(chunks)-1] {
		if c.Choices[0].FinishReason != nil {
			t.Fatalf("token chunk has finish reason: %+v", c.Choices[0])
		}
	}
}

func TestChatStreamAnnouncesRoleOnce(t *testing.T) {
	h := newTextAPI(t, tokenRun("Hi", " there"))
	rr := postJSON(t, h, "/v1/chat/completions", types.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "hello"}},
		Stream:   true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("chat stream = %d %s", rr.Code, rr.Body.String())
	}
	chunks := decodeChunks(t, drainSSE(t, rr.Body))
	if len(chunks) < 3 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	if chunks[0].Object != types.ObjectChatCompletionChunk {
		t.Fatalf("chunk object = %q", chunks[0].Object)
	}
	if chunks[0].Choices[0].Delta == nil || chunks[0].Choices[0].Delta.Role != "assistant" {
		t.Fatalf("first chunk does not announce role: %+v", chunks[0].Choices[0])
	}
	var got strings.Builder
	for i, c := range chunks {
		if i > 0 && c.Choices[0].Delta.Role != "" {
			t.Fatalf("role repeated on chunk %d", i)
		}
		got.WriteString(c.Choices[0].Delta.Content)
	}
	if got.String() != "Hi there" {
		t.Fatalf("delta concat = %q", got.String())
	}
}

func TestChatDrainMatchesStream(t *testing.T) {
	h := newTextAPI(t, tokenRun("fine,", " thanks"))
	body := types.ChatRequest{Messages: []types.ChatMessage{{Role: "user", Content: "how are you"}}}

	plain := postJSON(t, h, "/v1/chat/completions", body)
	if plain.Code != http.StatusOK {
		t.Fatalf("chat = %d %s", plain.Code, plain.Body.String())
	}
	res := decodeBody[types.ChatResponse](t, plain)
	if res.Choices[0].Message.Role != "assistant" {
		t.Fatalf("message role = %q", res.Choices[0].Message.Role)
	}

	body.Stream = true
	streamed := postJSON(t, h, "/v1/chat/completions", body)
	var got strings.Builder
	for _, c := range decodeChunks(t, drainSSE(t, streamed.Body)) {
		got.WriteString(c.Choices[0].Delta.Content)
	}
	if got.String() != res.Choices[0].Message.Content {
		t.Fatalf("stream concat %q != drained %q", got.String(), res.Choices[0].Message.Content)
	}
}

func TestStreamEngineFailureEmitsErrorFrame(t *testing.T) {
	svc := newService(t, func(cfg *manager.ServiceConfig) {
		cfg.TextEngineFactory = func(manager.ModelSpec, int) (manager.TextEngine, error) {
			return &scriptEngine{tokens: tokenRun("par", "tial"), err: errors.New("kv cache exhausted")}, nil
		}
	})
	loadText(t, svc)
	rr := postJSON(t, NewMux(svc), "/v1/completions", types.CompletionRequest{Prompt: "p", Stream: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("stream status = %d", rr.Code)
	}
	frames := drainSSE(t, rr.Body)
	last := frames[len(frames)-1]
	if last == "[DONE]" {
		t.Fatalf("failed stream still terminated with DONE: %v", frames)
	}
	var failure types.ErrorResponse
	if err := json.Unmarshal([]byte(last), &failure); err != nil {
		t.Fatalf("decode error frame %q: %v", last, err)
	}
	if failure.Error.Type != "engine_error" || !strings.Contains(failure.Error.Message, "kv cache exhausted") {
		t.Fatalf("error frame = %+v", failure.Error)
	}
}

func TestStreamClientDisconnectCancelsProducer(t *testing.T) {
	eng := &slowEngine{}
	svc := newService(t, func(cfg *manager.ServiceConfig) {
		cfg.TextEngineFactory = func(manager.ModelSpec, int) (manager.TextEngine, error) {
			return eng, nil
		}
	})
	loadText(t, svc)
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	readFirstFrame := func(ctx context.Context) {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1/completions",
			bytes.NewReader([]byte(`{"prompt":"p","stream":true}`)))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if _, err := bufio.NewReader(resp.Body).ReadString('\n'); err != nil {
			t.Fatalf("read first frame: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	readFirstFrame(ctx)
	cancel()

	deadline := time.After(2 * time.Second)
	for !eng.stopped.Load() {
		select {
		case <-deadline:
			t.Fatal("producer still running after client disconnect")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The generation slot must be free again for the next request.
	ctx2, cancel2 := context.WithCancel(context.Background())
	readFirstFrame(ctx2)
	cancel2()
}

func TestStreamCarriesLogprobs(t *testing.T) {
	toks := []manager.Token{{
		Text: "hi",
		Logprobs: &manager.LogprobChunk{
			Tokens:        []string{"hi"},
			TokenLogprobs: []float64{-0.25},
		},
	}}
	h := newTextAPI(t, toks)
	rr := postJSON(t, h, "/v1/completions", types.CompletionRequest{Prompt: "p", Stream: true})
	chunks := decodeChunks(t, drainSSE(t, rr.Body))
	if chunks[0].Choices[0].Logprobs == nil {
		t.Fatalf("logprobs missing from chunk: %+v", chunks[0].Choices[0])
	}
	if got := chunks[0].Choices[0].Logprobs.TokenLogprobs[0]; got != -0.25 {
		t.Fatalf("token logprob = %v", got)
	}
}
