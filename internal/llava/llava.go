// Package llava binds the exported surface of the llava/clip multimodal
// embedding library at runtime. The package declares signatures and raw
// struct views only; ownership rules and call ordering are the caller's
// contract, exactly as with the C API.
//
// The library is resolved with dlopen, so builds need no cgo and no
// headers; a missing or incompatible library surfaces as an error from
// Open, not at build time.
package llava

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// ClipContext is an opaque clip_ctx pointer owned by the native library.
type ClipContext uintptr

// LlamaContext is an opaque llama_context pointer. The binding never
// creates one; it is supplied by the engine that owns the text context.
type LlamaContext uintptr

// Lib holds the registered entry points of one loaded library.
type Lib struct {
	clipModelLoad              func(fname string, verbosity int32) uintptr
	clipFree                   func(ctx uintptr)
	imageEmbedMakeWithBytes    func(clip uintptr, nThreads int32, bytes *byte, length int32) uintptr
	imageEmbedMakeWithFilename func(clip uintptr, nThreads int32, path string) uintptr
	imageEmbedFree             func(embed uintptr)
	validateEmbedSize          func(ctxLlama uintptr, ctxClip uintptr) bool
	evalImageEmbed             func(ctxLlama uintptr, embed uintptr, nBatch int32, nPast *int32) bool
}

// Open loads the shared library at path and registers every symbol the
// binding declares. All symbols must resolve.
func Open(path string) (*Lib, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", path, err)
	}
	l := &Lib{}
	for _, s := range []struct {
		fptr any
		name string
	}{
		{&l.clipModelLoad, "clip_model_load"},
		{&l.clipFree, "clip_free"},
		{&l.imageEmbedMakeWithBytes, "llava_image_embed_make_with_bytes"},
		{&l.imageEmbedMakeWithFilename, "llava_image_embed_make_with_filename"},
		{&l.imageEmbedFree, "llava_image_embed_free"},
		{&l.validateEmbedSize, "llava_validate_embed_size"},
		{&l.evalImageEmbed, "llava_eval_image_embed"},
	} {
		if err := register(s.fptr, h, s.name); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func register(fptr any, handle uintptr, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bind %s: %v", name, r)
		}
	}()
	purego.RegisterLibFunc(fptr, handle, name)
	return nil
}

// ClipModelLoad loads a clip projector model. Returns 0 on failure, as the
// native function returns NULL.
func (l *Lib) ClipModelLoad(fname string, verbosity int32) ClipContext {
	return ClipContext(l.clipModelLoad(fname, verbosity))
}

// ClipFree releases a clip context.
func (l *Lib) ClipFree(ctx ClipContext) {
	l.clipFree(uintptr(ctx))
}

// ImageEmbedMakeWithBytes builds an image embedding from an encoded image
// buffer. The returned embed is native-owned until ImageEmbedFree.
func (l *Lib) ImageEmbedMakeWithBytes(clip ClipContext, nThreads int32, data []byte) ImageEmbed {
	if len(data) == 0 {
		return 0
	}
	return ImageEmbed(l.imageEmbedMakeWithBytes(uintptr(clip), nThreads, &data[0], int32(len(data))))
}

// ImageEmbedMakeWithFilename builds an image embedding from an image file.
// The returned embed is native-owned until ImageEmbedFree.
func (l *Lib) ImageEmbedMakeWithFilename(clip ClipContext, nThreads int32, path string) ImageEmbed {
	return ImageEmbed(l.imageEmbedMakeWithFilename(uintptr(clip), nThreads, path))
}

// ImageEmbedFree releases an image embedding.
func (l *Lib) ImageEmbedFree(embed ImageEmbed) {
	l.imageEmbedFree(uintptr(embed))
}

// ValidateEmbedSize reports whether the clip embedding width matches the
// llama context. Callers must check this before EvalImageEmbed.
func (l *Lib) ValidateEmbedSize(ctxLlama LlamaContext, ctxClip ClipContext) bool {
	return l.validateEmbedSize(uintptr(ctxLlama), uintptr(ctxClip))
}

// EvalImageEmbed writes the embedding into the llama context in batches of
// nBatch, advancing *nPast. The context must belong to the same model
// family as the clip context that produced the embed.
func (l *Lib) EvalImageEmbed(ctxLlama LlamaContext, embed ImageEmbed, nBatch int32, nPast *int32) bool {
	return l.evalImageEmbed(uintptr(ctxLlama), uintptr(embed), nBatch, nPast)
}
