package llava

import "unsafe"

// ImageEmbed is an opaque llava_image_embed pointer:
//
//	struct llava_image_embed { float *embed; int n_image_pos; };
//
// The buffer stays native-owned; accessors below are read-only views.
type ImageEmbed uintptr

// embedLayout mirrors the native struct for field access.
type embedLayout struct {
	embed     *float32
	nImagePos int32
}

// NImagePos returns the number of positions the embedding occupies in the
// context. Zero for a nil embed.
func (e ImageEmbed) NImagePos() int32 {
	if e == 0 {
		return 0
	}
	return (*embedLayout)(unsafe.Pointer(e)).nImagePos
}

// Floats exposes the first n values of the native embedding buffer. The
// view is invalid after ImageEmbedFree.
func (e ImageEmbed) Floats(n int) []float32 {
	if e == 0 || n <= 0 {
		return nil
	}
	p := (*embedLayout)(unsafe.Pointer(e)).embed
	if p == nil {
		return nil
	}
	return unsafe.Slice(p, n)
}
