// Package sd binds the bundled stable-diffusion support library. The
// library wraps stable-diffusion.cpp behind a flat C surface so it can be
// resolved with dlopen; symbol registration happens at runtime and a
// missing library is an Open error, not a build error.
package sd

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Context is an opaque diffusion context pointer.
type Context uintptr

// Lib holds the registered entry points of one loaded library.
type Lib struct {
	sdCreate  func(model string, threads int32, wtype string) uintptr
	sdDestroy func(ctx uintptr)
	sdTxt2img func(ctx uintptr, prompt string, negative string, cfgScale float32,
		width int32, height int32, steps int32, seed int64, batch int32) uintptr
	sdImg2img func(ctx uintptr, init *byte, width int32, height int32,
		prompt string, negative string, strength float32, cfgScale float32,
		steps int32, seed int64) uintptr
	sdImagesFree func(imgs uintptr, count int32)
}

// Open loads the shared library at path and registers every symbol.
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
		{&l.sdCreate, "sd_create"},
		{&l.sdDestroy, "sd_destroy"},
		{&l.sdTxt2img, "sd_txt2img"},
		{&l.sdImg2img, "sd_img2img"},
		{&l.sdImagesFree, "sd_images_free"},
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

// Create builds a diffusion context for the model at path. Returns 0 on
// failure. wtype selects the weight type ("" lets the library pick).
func (l *Lib) Create(model string, threads int32, wtype string) Context {
	return Context(l.sdCreate(model, threads, wtype))
}

// Destroy releases a diffusion context.
func (l *Lib) Destroy(ctx Context) {
	l.sdDestroy(uintptr(ctx))
}

// Txt2Img runs text-to-image generation and returns a native-owned image
// array of length batch, or a nil array on failure.
func (l *Lib) Txt2Img(ctx Context, prompt, negative string, cfgScale float32,
	width, height, steps int32, seed int64, batch int32) ImageArray {
	ptr := l.sdTxt2img(uintptr(ctx), prompt, negative, cfgScale, width, height, steps, seed, batch)
	return ImageArray{ptr: ptr, count: batch}
}

// Img2Img repaints init (raw RGB, width*height*3 bytes) under prompt
// guidance. Returns a native-owned one-image array, or nil on failure.
func (l *Lib) Img2Img(ctx Context, init []byte, width, height int32,
	prompt, negative string, strength, cfgScale float32, steps int32, seed int64) ImageArray {
	if len(init) == 0 {
		return ImageArray{}
	}
	ptr := l.sdImg2img(uintptr(ctx), &init[0], width, height, prompt, negative, strength, cfgScale, steps, seed)
	return ImageArray{ptr: ptr, count: 1}
}

// ImagesFree releases an image array returned by Txt2Img or Img2Img.
func (l *Lib) ImagesFree(a ImageArray) {
	if a.ptr == 0 {
		return
	}
	l.sdImagesFree(a.ptr, a.count)
}
