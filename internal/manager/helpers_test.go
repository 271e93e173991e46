package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// fakeTextEngine replays scripted tokens and records the prompt it saw.
type fakeTextEngine struct {
	tokens []Token
	finish string
	err    error

	mu         sync.Mutex
	lastPrompt string
	lastParams GenParams
	closed     atomic.Bool
}

func (f *fakeTextEngine) Generate(ctx context.Context, prompt string, params GenParams, onToken func(Token) error) (GenResult, error) {
	f.mu.Lock()
	f.lastPrompt = prompt
	f.lastParams = params
	f.mu.Unlock()
	for _, tok := range f.tokens {
		select {
		case <-ctx.Done():
			return GenResult{}, ctx.Err()
		default:
		}
		if err := onToken(tok); err != nil {
			return GenResult{}, err
		}
	}
	if f.err != nil {
		return GenResult{}, f.err
	}
	finish := f.finish
	if finish == "" {
		finish = types.FinishStop
	}
	return GenResult{FinishReason: finish}, nil
}

func (f *fakeTextEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeTextEngine) prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

func (f *fakeTextEngine) params() GenParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastParams
}

// gatedTextEngine blocks inside Generate until released, so tests can
// hold a request in flight.
type gatedTextEngine struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func newGatedTextEngine() *gatedTextEngine {
	return &gatedTextEngine{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedTextEngine) Generate(ctx context.Context, prompt string, params GenParams, onToken func(Token) error) (GenResult, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return GenResult{}, ctx.Err()
	}
	if err := onToken(Token{Text: "late"}); err != nil {
		return GenResult{}, err
	}
	return GenResult{FinishReason: types.FinishStop}, nil
}

func (g *gatedTextEngine) Close() error {
	g.closed.Store(true)
	return nil
}

// fakeImageEngine returns a fixed solid-color image.
type fakeImageEngine struct {
	width  int
	height int
	err    error
	closed atomic.Bool

	mu         sync.Mutex
	lastParams ImageParams
	lastInit   RawImage
}

func (f *fakeImageEngine) image() RawImage {
	pix := make([]byte, f.width*f.height*3)
	for i := range pix {
		pix[i] = 0x7f
	}
	return RawImage{Width: f.width, Height: f.height, Pix: pix}
}

func (f *fakeImageEngine) Txt2Img(ctx context.Context, p ImageParams) ([]RawImage, error) {
	f.mu.Lock()
	f.lastParams = p
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []RawImage{f.image()}, nil
}

func (f *fakeImageEngine) Img2Img(ctx context.Context, init RawImage, p ImageParams) ([]RawImage, error) {
	f.mu.Lock()
	f.lastParams = p
	f.lastInit = init
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []RawImage{f.image()}, nil
}

func (f *fakeImageEngine) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeSpeechEngine returns fixed text and records what it was given.
type fakeSpeechEngine struct {
	text string
	err  error

	mu         sync.Mutex
	lastParams SpeechParams
	sampleLen  int
	closed     atomic.Bool
}

func (f *fakeSpeechEngine) Transcribe(ctx context.Context, samples []float32, p SpeechParams) (string, error) {
	f.mu.Lock()
	f.lastParams = p
	f.sampleLen = len(samples)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeSpeechEngine) Close() error {
	f.closed.Store(true)
	return nil
}

var errFactoryExhausted = errors.New("factory exhausted")

// engineQueue hands out engines in order across successive loads.
type engineQueue struct {
	mu      sync.Mutex
	engines []TextEngine
}

func (q *engineQueue) next(ModelSpec, int) (TextEngine, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.engines) == 0 {
		return nil, errFactoryExhausted
	}
	e := q.engines[0]
	q.engines = q.engines[1:]
	return e, nil
}

func testConfig(t *testing.T) ServiceConfig {
	t.Helper()
	return ServiceConfig{
		Logger:    zerolog.Nop(),
		OutputDir: t.TempDir(),
		MaxQueue:  4,
		MaxWait:   2 * time.Second,
	}
}

func newTextService(t *testing.T, engine TextEngine) *Service {
	t.Helper()
	cfg := testConfig(t)
	cfg.TextEngineFactory = func(ModelSpec, int) (TextEngine, error) { return engine, nil }
	s := New(cfg)
	spec := ModelSpec{ID: "m", Kind: KindText, Path: "m.gguf", CtxLen: 512, GPULayers: -1}
	if err := s.LoadSpec(context.Background(), spec); err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	return s
}

func newDiffusionService(t *testing.T, engine ImageEngine) *Service {
	t.Helper()
	cfg := testConfig(t)
	cfg.ImageEngineFactory = func(ModelSpec) (ImageEngine, error) { return engine, nil }
	s := New(cfg)
	if err := s.LoadSpec(context.Background(), ModelSpec{ID: "sd", Kind: KindDiffusion, Path: "sd.gguf"}); err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	return s
}

func newAudioService(t *testing.T, engine SpeechEngine) *Service {
	t.Helper()
	cfg := testConfig(t)
	cfg.SpeechEngineFactory = func(ModelSpec) (SpeechEngine, error) { return engine, nil }
	s := New(cfg)
	if err := s.LoadSpec(context.Background(), ModelSpec{ID: "w", Kind: KindAudio, Path: "w.bin"}); err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	return s
}

// waitCond polls cond until it holds or the deadline passes.
func waitCond(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
