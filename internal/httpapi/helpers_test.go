package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// scriptEngine emits a fixed token sequence.
type scriptEngine struct {
	tokens []manager.Token
	finish string
	err    error

	entered chan struct{} // when set, closed once Generate is reached
	block   chan struct{} // when set, Generate waits here before emitting
}

func (e *scriptEngine) Generate(ctx context.Context, prompt string, params manager.GenParams, onToken func(manager.Token) error) (manager.GenResult, error) {
	if e.entered != nil {
		close(e.entered)
		e.entered = nil
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return manager.GenResult{}, ctx.Err()
		}
	}
	var content bytes.Buffer
	for _, tok := range e.tokens {
		select {
		case <-ctx.Done():
			return manager.GenResult{}, ctx.Err()
		default:
		}
		if err := onToken(tok); err != nil {
			return manager.GenResult{}, err
		}
		content.WriteString(tok.Text)
	}
	if e.err != nil {
		return manager.GenResult{}, e.err
	}
	finish := e.finish
	if finish == "" {
		finish = types.FinishStop
	}
	return manager.GenResult{Content: content.String(), FinishReason: finish}, nil
}

func (e *scriptEngine) Close() error { return nil }

// slowEngine emits tokens one per tick until the context ends, to keep a
// stream open as long as the test wants.
type slowEngine struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (e *slowEngine) Generate(ctx context.Context, prompt string, params manager.GenParams, onToken func(manager.Token) error) (manager.GenResult, error) {
	e.started.Store(true)
	defer e.stopped.Store(true)
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return manager.GenResult{}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
		if err := onToken(manager.Token{Text: "tok"}); err != nil {
			return manager.GenResult{}, err
		}
	}
}

func (e *slowEngine) Close() error { return nil }

type fakeImageEngine struct{}

func (fakeImageEngine) Txt2Img(ctx context.Context, p manager.ImageParams) ([]manager.RawImage, error) {
	return []manager.RawImage{solidImage(p.Width, p.Height)}, nil
}

func (fakeImageEngine) Img2Img(ctx context.Context, init manager.RawImage, p manager.ImageParams) ([]manager.RawImage, error) {
	return []manager.RawImage{solidImage(p.Width, p.Height)}, nil
}

func (fakeImageEngine) Close() error { return nil }

func solidImage(w, h int) manager.RawImage {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = 0x5a
	}
	return manager.RawImage{Width: w, Height: h, Pix: pix}
}

type fakeSpeechEngine struct {
	text string
	err  error

	got        manager.SpeechParams
	gotSamples int
}

func (e *fakeSpeechEngine) Transcribe(ctx context.Context, samples []float32, p manager.SpeechParams) (string, error) {
	e.got = p
	e.gotSamples = len(samples)
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

func (e *fakeSpeechEngine) Close() error { return nil }

// catalogStub satisfies manager.Catalog for load-endpoint tests.
type catalogStub struct {
	spec manager.ModelSpec
	err  error
}

func (c *catalogStub) Resolve(ctx context.Context, req manager.ResolveRequest) (manager.ModelSpec, error) {
	if c.err != nil {
		return manager.ModelSpec{}, c.err
	}
	spec := c.spec
	if spec.ID == "" {
		spec.ID = req.Model
	}
	return spec, nil
}

func (c *catalogStub) List() []types.ModelCard { return nil }

// newService builds a manager.Service with fake engine factories and a
// temp output dir.
func newService(t *testing.T, mutate func(*manager.ServiceConfig)) *manager.Service {
	t.Helper()
	cfg := manager.ServiceConfig{
		Logger:    zerolog.Nop(),
		OutputDir: t.TempDir(),
		MaxQueue:  4,
		MaxWait:   2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc := manager.New(cfg)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func loadText(t *testing.T, svc *manager.Service) {
	t.Helper()
	spec := manager.ModelSpec{ID: "m", Kind: manager.KindText, Path: "/models/m.gguf", CtxLen: 512}
	if err := svc.LoadSpec(context.Background(), spec); err != nil {
		t.Fatalf("load text model: %v", err)
	}
}

// newTextAPI serves a text model backed by a scripted engine.
func newTextAPI(t *testing.T, tokens []manager.Token) http.Handler {
	t.Helper()
	svc := newService(t, func(cfg *manager.ServiceConfig) {
		cfg.TextEngineFactory = func(spec manager.ModelSpec, gpuLayers int) (manager.TextEngine, error) {
			return &scriptEngine{tokens: tokens}, nil
		}
	})
	loadText(t, svc)
	return NewMux(svc)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[types.ErrorResponse](t, rr).Error.Type
}

// multipartBody builds a multipart form with one file part and extra fields.
func multipartBody(t *testing.T, fileField, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// encodeTestPNG renders a small solid PNG for init-image uploads.
func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: 0x40, B: 0x60, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// encodeTestWAV renders a short 16 kHz mono WAV payload.
func encodeTestWAV(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		SourceBitDepth: 16,
		Data:           make([]int, 1600),
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 64) * 256
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav file: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return b
}

func drainSSE(t *testing.T, body io.Reader) []string {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read sse body: %v", err)
	}
	var frames []string
	for _, line := range bytes.Split(raw, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data: ")) {
			t.Fatalf("non-sse line in stream: %q", line)
		}
		frames = append(frames, string(bytes.TrimPrefix(line, []byte("data: "))))
	}
	return frames
}
