package manager

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/image/draw"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// rawToImage wraps an engine RGB buffer as an image for encoding.
func rawToImage(raw RawImage) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, raw.Width, raw.Height))
	for y := 0; y < raw.Height; y++ {
		for x := 0; x < raw.Width; x++ {
			si := (y*raw.Width + x) * 3
			di := img.PixOffset(x, y)
			img.Pix[di] = raw.Pix[si]
			img.Pix[di+1] = raw.Pix[si+1]
			img.Pix[di+2] = raw.Pix[si+2]
			img.Pix[di+3] = 0xff
		}
	}
	return img
}

// decodeToRaw decodes an encoded image (PNG, JPEG, BMP or WebP) and
// scales it to w x h RGB for the engine.
func decodeToRaw(data []byte, w, h int) (RawImage, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return RawImage{}, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	raw := RawImage{Width: w, Height: h, Pix: make([]byte, w*h*3)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := dst.PixOffset(x, y)
			di := (y*w + x) * 3
			raw.Pix[di] = dst.Pix[si]
			raw.Pix[di+1] = dst.Pix[si+1]
			raw.Pix[di+2] = dst.Pix[si+2]
		}
	}
	return raw, nil
}

// saveImage encodes raw as PNG, writes it under the output directory and
// returns the inline plus on-disk representation.
func (s *Service) saveImage(prefix string, raw RawImage) (types.GeneratedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, rawToImage(raw)); err != nil {
		return types.GeneratedImage{}, fmt.Errorf("encode png: %w", err)
	}
	if err := fsutil.EnsureDir(s.cfg.OutputDir); err != nil {
		return types.GeneratedImage{}, err
	}

	name := fmt.Sprintf("%s_%s.png", prefix, uuid.NewString()[:8])
	path := filepath.Join(s.cfg.OutputDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return types.GeneratedImage{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return types.GeneratedImage{
		Base64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		URL:    abs,
	}, nil
}
