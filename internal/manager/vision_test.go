package manager

import (
	"testing"

	"inferd/internal/llava"
)

// fakeBinding scripts the native llava surface so sessions can run
// without a real library.
type fakeBinding struct {
	nextEmbed llava.ImageEmbed
	validate  bool
	evalOK    bool
	evalStep  int32

	validateCalls int
	evals         int
	freed         []llava.ImageEmbed
	closed        bool
}

func newFakeBinding() *fakeBinding {
	return &fakeBinding{nextEmbed: 1, validate: true, evalOK: true, evalStep: 32}
}

func (f *fakeBinding) EmbedBytes(nThreads int32, data []byte) llava.ImageEmbed {
	e := f.nextEmbed
	if e != 0 {
		f.nextEmbed++
	}
	return e
}

func (f *fakeBinding) EmbedFile(nThreads int32, path string) llava.ImageEmbed {
	return f.EmbedBytes(nThreads, []byte(path))
}

func (f *fakeBinding) ValidateEmbedSize(ctx llava.LlamaContext) bool {
	f.validateCalls++
	return f.validate
}

func (f *fakeBinding) EvalEmbed(ctx llava.LlamaContext, e llava.ImageEmbed, nBatch int32, nPast *int32) bool {
	f.evals++
	if !f.evalOK {
		return false
	}
	*nPast += f.evalStep
	return true
}

func (f *fakeBinding) FreeEmbed(e llava.ImageEmbed) { f.freed = append(f.freed, e) }

func (f *fakeBinding) Close() error {
	f.closed = true
	return nil
}

func newTestSession(b ProjectorBinding) *ImageSession {
	h := &VisionHandle{projector: b}
	return h.NewImageSession(llava.LlamaContext(0xbeef), 512, 4)
}

func TestImageSessionAdvancesCursor(t *testing.T) {
	b := newFakeBinding()
	s := newTestSession(b)

	if err := s.FeedBytes([]byte("png-one")); err != nil {
		t.Fatalf("feed one: %v", err)
	}
	if err := s.FeedBytes([]byte("png-two")); err != nil {
		t.Fatalf("feed two: %v", err)
	}
	if s.NPast() != 64 {
		t.Fatalf("expected cursor at 64 after two images, got %d", s.NPast())
	}
	if b.validateCalls != 1 {
		t.Fatalf("size check should run once per session, got %d", b.validateCalls)
	}
	if len(b.freed) != 2 {
		t.Fatalf("both embeds must be freed, got %d", len(b.freed))
	}
}

func TestImageSessionValidateFailurePreventsEval(t *testing.T) {
	b := newFakeBinding()
	b.validate = false
	s := newTestSession(b)

	err := s.FeedBytes([]byte("png"))
	if !IsEngine(err) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if b.evals != 0 {
		t.Fatal("eval must not run when the size check fails")
	}
	if len(b.freed) != 1 {
		t.Fatalf("embed must be freed even on the failure path, got %d", len(b.freed))
	}
}

func TestImageSessionEvalFailureFreesEmbed(t *testing.T) {
	b := newFakeBinding()
	b.evalOK = false
	s := newTestSession(b)

	if err := s.FeedBytes([]byte("png")); err == nil {
		t.Fatal("expected eval failure")
	}
	if len(b.freed) != 1 {
		t.Fatalf("embed must be freed after eval failure, got %d", len(b.freed))
	}
	if s.NPast() != 0 {
		t.Fatalf("cursor must not move on failure, got %d", s.NPast())
	}
}

func TestImageSessionEmbedFailure(t *testing.T) {
	b := newFakeBinding()
	b.nextEmbed = 0
	s := newTestSession(b)

	if err := s.FeedBytes([]byte("broken")); err == nil {
		t.Fatal("expected embed construction failure")
	}
	if b.validateCalls != 0 || b.evals != 0 || len(b.freed) != 0 {
		t.Fatalf("nothing downstream should run: validates=%d evals=%d freed=%d",
			b.validateCalls, b.evals, len(b.freed))
	}
}

func TestImageSessionRejectsEmptyPayload(t *testing.T) {
	s := newTestSession(newFakeBinding())
	if err := s.FeedBytes(nil); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImageSessionFeedFile(t *testing.T) {
	b := newFakeBinding()
	s := newTestSession(b)
	if err := s.FeedFile("/tmp/cat.png"); err != nil {
		t.Fatalf("FeedFile: %v", err)
	}
	if s.NPast() != 32 || len(b.freed) != 1 {
		t.Fatalf("unexpected state: npast=%d freed=%d", s.NPast(), len(b.freed))
	}
}

func TestVisionHandleCloseClosesBoth(t *testing.T) {
	eng := &fakeTextEngine{}
	b := newFakeBinding()
	h := &VisionHandle{engine: eng, projector: b}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !eng.closed.Load() || !b.closed {
		t.Fatal("both the engine and the projector must close")
	}
}
