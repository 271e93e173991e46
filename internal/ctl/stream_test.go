package ctl

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			io.WriteString(w, "data: "+f+"\n\n")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamGeneratePrintsCompletionTokens(t *testing.T) {
	srv := sseServer(t,
		`{"id":"cmpl-1","object":"text_completion","created":1,"model":"m","choices":[{"index":0,"text":"Hel","finish_reason":null}]}`,
		`{"id":"cmpl-1","object":"text_completion","created":1,"model":"m","choices":[{"index":0,"text":"lo","finish_reason":null}]}`,
		`{"id":"cmpl-1","object":"text_completion","created":1,"model":"m","choices":[{"index":0,"text":"","finish_reason":"stop"}]}`,
		`[DONE]`,
	)
	c := newClient(testConfig(srv.URL))

	var out bytes.Buffer
	if err := c.streamGenerate(&out, "/v1/completions", map[string]any{"prompt": "hi", "stream": true}); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out.String() != "Hello\n" {
		t.Fatalf("stream output: %q", out.String())
	}
}

func TestStreamGeneratePrintsChatDeltas(t *testing.T) {
	srv := sseServer(t,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"Par"},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"is."},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	)
	c := newClient(testConfig(srv.URL))

	var out bytes.Buffer
	if err := c.streamGenerate(&out, "/v1/chat/completions", map[string]any{"stream": true}); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out.String() != "Paris.\n" {
		t.Fatalf("stream output: %q", out.String())
	}
}

func TestStreamGenerateSurfacesErrorFrame(t *testing.T) {
	srv := sseServer(t,
		`{"id":"cmpl-1","object":"text_completion","created":1,"model":"m","choices":[{"index":0,"text":"par","finish_reason":null}]}`,
		`{"error":{"message":"kv cache exhausted","type":"engine_error","code":"engine_error"}}`,
	)
	c := newClient(testConfig(srv.URL))

	var out bytes.Buffer
	err := c.streamGenerate(&out, "/v1/completions", map[string]any{"stream": true})
	if err == nil || !strings.Contains(err.Error(), "kv cache exhausted") {
		t.Fatalf("expected engine error, got %v", err)
	}
	if !strings.Contains(out.String(), "par") {
		t.Fatalf("tokens before the failure should be printed: %q", out.String())
	}
}

func TestStreamGenerateNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"message":"no model loaded","type":"model_not_loaded","code":"model_not_loaded"}}`)
	}))
	t.Cleanup(srv.Close)
	c := newClient(testConfig(srv.URL))

	var out bytes.Buffer
	err := c.streamGenerate(&out, "/v1/completions", map[string]any{"stream": true})
	if err == nil || !strings.Contains(err.Error(), "no model loaded") {
		t.Fatalf("expected daemon error, got %v", err)
	}
}
