package manager

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Handle is a loaded model bound to its runtime. The set of
// implementations is closed: TextHandle, VisionHandle, DiffusionHandle
// and AudioHandle. Callers dispatch with a type switch and treat any
// other case as a programming error.
type Handle interface {
	Kind() Kind
	Spec() ModelSpec
	Device() Device
	Close() error

	sealed()
}

// TextHandle serves completion and chat generation.
type TextHandle struct {
	spec   ModelSpec
	device Device
	engine TextEngine
}

func (h *TextHandle) Kind() Kind      { return KindText }
func (h *TextHandle) Spec() ModelSpec { return h.spec }
func (h *TextHandle) Device() Device  { return h.device }
func (h *TextHandle) Close() error    { return h.engine.Close() }
func (h *TextHandle) sealed()         {}

// VisionHandle serves text generation with an attached image projector.
type VisionHandle struct {
	spec      ModelSpec
	device    Device
	engine    TextEngine
	projector ProjectorBinding
}

func (h *VisionHandle) Kind() Kind      { return KindVisionLanguage }
func (h *VisionHandle) Spec() ModelSpec { return h.spec }
func (h *VisionHandle) Device() Device  { return h.device }

func (h *VisionHandle) Close() error {
	return errors.Join(h.engine.Close(), h.projector.Close())
}

func (h *VisionHandle) sealed() {}

// DiffusionHandle serves image generation.
type DiffusionHandle struct {
	spec   ModelSpec
	engine ImageEngine
}

func (h *DiffusionHandle) Kind() Kind      { return KindDiffusion }
func (h *DiffusionHandle) Spec() ModelSpec { return h.spec }
func (h *DiffusionHandle) Device() Device  { return DeviceCPU }
func (h *DiffusionHandle) Close() error    { return h.engine.Close() }
func (h *DiffusionHandle) sealed()         {}

// AudioHandle serves transcription.
type AudioHandle struct {
	spec   ModelSpec
	engine SpeechEngine
}

func (h *AudioHandle) Kind() Kind      { return KindAudio }
func (h *AudioHandle) Spec() ModelSpec { return h.spec }
func (h *AudioHandle) Device() Device  { return DeviceCPU }
func (h *AudioHandle) Close() error    { return h.engine.Close() }
func (h *AudioHandle) sealed()         {}

// active pairs a handle with its admission gate and tracks in-flight
// requests so a replaced model is only closed once drained.
type active struct {
	handle   Handle
	gate     *gate
	loadedAt time.Time

	refs      atomic.Int64
	retired   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ref pins the handle against closure. It fails if the model has already
// been retired by a swap.
func (a *active) ref() bool {
	a.refs.Add(1)
	if a.retired.Load() {
		a.unref()
		return false
	}
	return true
}

// unref releases a pin and closes the handle if it was retired and this
// was the last in-flight request.
func (a *active) unref() {
	if a.refs.Add(-1) == 0 && a.retired.Load() {
		a.close()
	}
}

// retire marks the model as replaced. If nothing is in flight it closes
// immediately; otherwise the last unref does.
func (a *active) retire() {
	a.retired.Store(true)
	if a.refs.Load() == 0 {
		a.close()
	}
}

func (a *active) close() {
	a.closeOnce.Do(func() {
		a.closeErr = a.handle.Close()
	})
}
