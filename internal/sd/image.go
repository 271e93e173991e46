package sd

import "unsafe"

// imageLayout mirrors the native sd_image_t:
//
//	typedef struct { uint32_t width, height, channel; uint8_t *data; } sd_image_t;
type imageLayout struct {
	width   uint32
	height  uint32
	channel uint32
	_       uint32
	data    *byte
}

// ImageArray is a native-owned array of generated images. Views are
// invalid after ImagesFree.
type ImageArray struct {
	ptr   uintptr
	count int32
}

// Len returns the number of images, zero for a failed generation.
func (a ImageArray) Len() int {
	if a.ptr == 0 {
		return 0
	}
	return int(a.count)
}

func (a ImageArray) at(i int) *imageLayout {
	return (*imageLayout)(unsafe.Pointer(a.ptr + uintptr(i)*unsafe.Sizeof(imageLayout{})))
}

// Dims returns width, height, and channel count of image i.
func (a ImageArray) Dims(i int) (w, h, ch int) {
	if i < 0 || i >= a.Len() {
		return 0, 0, 0
	}
	img := a.at(i)
	return int(img.width), int(img.height), int(img.channel)
}

// Pixels exposes the raw pixel buffer of image i (width*height*channel
// bytes, row-major).
func (a ImageArray) Pixels(i int) []byte {
	if i < 0 || i >= a.Len() {
		return nil
	}
	img := a.at(i)
	if img.data == nil {
		return nil
	}
	n := int(img.width) * int(img.height) * int(img.channel)
	if n <= 0 {
		return nil
	}
	return unsafe.Slice(img.data, n)
}
