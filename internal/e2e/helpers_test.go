package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/registry"
)

// fakeHub serves model artifacts by hub-relative path, standing in for
// the real download endpoint so pull tests stay offline.
func fakeHub(t *testing.T, artifacts map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := artifacts[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// scriptedEngine emits a fixed token sequence with an optional delay per
// token. Close is tracked so retire-after-drain can be asserted.
type scriptedEngine struct {
	tokens []string
	delay  time.Duration
	closed atomic.Bool
}

func (e *scriptedEngine) Generate(ctx context.Context, prompt string, params manager.GenParams, onToken func(manager.Token) error) (manager.GenResult, error) {
	var res manager.GenResult
	for _, tok := range e.tokens {
		if e.delay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(e.delay):
			}
		} else if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := onToken(manager.Token{Text: tok}); err != nil {
			return res, err
		}
		res.Content += tok
	}
	return res, nil
}

func (e *scriptedEngine) Close() error {
	e.closed.Store(true)
	return nil
}

// blockingEngine parks in Generate until released, for backpressure tests.
type blockingEngine struct {
	release chan struct{}
}

func (e *blockingEngine) Generate(ctx context.Context, prompt string, params manager.GenParams, onToken func(manager.Token) error) (manager.GenResult, error) {
	select {
	case <-ctx.Done():
		return manager.GenResult{}, ctx.Err()
	case <-e.release:
	}
	if err := onToken(manager.Token{Text: "ok"}); err != nil {
		return manager.GenResult{}, err
	}
	return manager.GenResult{Content: "ok"}, nil
}

func (e *blockingEngine) Close() error { return nil }

// stack is a fully wired daemon: real registry over a fake hub, real
// manager with a substituted text engine, real mux on a test listener.
type stack struct {
	srv      *httptest.Server
	svc      *manager.Service
	cacheDir string
}

func newStack(t *testing.T, hub *httptest.Server, mutate func(*manager.ServiceConfig)) *stack {
	t.Helper()
	cacheDir := t.TempDir()
	reg, err := registry.New(registry.Config{
		Logger:   zerolog.Nop(),
		HubURL:   hub.URL,
		CacheDir: cacheDir,
		CtxLen:   512,
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cfg := manager.ServiceConfig{
		Logger:    zerolog.Nop(),
		Catalog:   reg,
		OutputDir: t.TempDir(),
		MaxQueue:  4,
		MaxWait:   2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc := manager.New(cfg)
	t.Cleanup(func() { svc.Close() })
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, svc: svc, cacheDir: cacheDir}
}

// enableReload flips the load endpoint gate for the duration of the test.
func enableReload(t *testing.T) {
	t.Helper()
	httpapi.SetReloadEnabled(true)
	t.Cleanup(func() { httpapi.SetReloadEnabled(false) })
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func decodeInto(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", string(body), err)
	}
}
