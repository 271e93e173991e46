package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

func TestWriteErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		errType string
	}{
		{"validation", manager.ErrValidation("prompt must not be empty"), http.StatusBadRequest, "invalid_request_error"},
		{"not_found", manager.ErrModelNotFound("llama9"), http.StatusNotFound, "not_found_error"},
		{"dependency", manager.ErrDependencyUnavailable("libllava.so not found"), http.StatusServiceUnavailable, "dependency_unavailable"},
		{"engine", manager.ErrEngine("txt2img", errors.New("oom")), http.StatusInternalServerError, "engine_error"},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tc.err)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			resp := decodeBody[types.ErrorResponse](t, rr)
			if resp.Error.Type != tc.errType {
				t.Fatalf("type = %q, want %q", resp.Error.Type, tc.errType)
			}
			if resp.Error.Code != tc.status {
				t.Fatalf("code = %d, want %d", resp.Error.Code, tc.status)
			}
			if resp.Error.Message == "" {
				t.Fatal("empty error message")
			}
		})
	}
}

func TestBusyModelReturns429(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	svc := newService(t, func(cfg *manager.ServiceConfig) {
		cfg.MaxQueue = 1
		cfg.MaxWait = 25 * time.Millisecond
		cfg.TextEngineFactory = func(manager.ModelSpec, int) (manager.TextEngine, error) {
			return &scriptEngine{entered: entered, block: release}, nil
		}
	})
	loadText(t, svc)
	h := NewMux(svc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		req := httptest.NewRequest(http.MethodPost, "/v1/completions", strings.NewReader(`{"prompt":"first"}`))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-entered

	rr := postJSON(t, h, "/v1/completions", types.CompletionRequest{Prompt: "second"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("busy status = %d %s", rr.Code, rr.Body.String())
	}
	if errorType(t, rr) != "too_busy_error" {
		t.Fatalf("error type = %q", errorType(t, rr))
	}

	close(release)
	wg.Wait()

	metrics := httptest.NewRecorder()
	h.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(metrics.Body.String(), "inferd_http_backpressure_total") {
		t.Fatal("backpressure counter not exported after rejection")
	}
}
