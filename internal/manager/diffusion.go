package manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"inferd/internal/sd"
	"inferd/pkg/types"
)

const (
	defaultCfgScale   = 7.0
	defaultImageSize  = 256
	defaultSteps      = 20
	defaultStrength   = 0.75
	maxImageDimension = 2048
)

// sdEngine implements ImageEngine over the bundled diffusion library.
// Pixel buffers are copied out before the native array is freed.
type sdEngine struct {
	lib     *sd.Lib
	ctx     sd.Context
	threads int32
}

func (s *Service) defaultImageEngine(spec ModelSpec) (ImageEngine, error) {
	if s.cfg.SDLib == "" {
		return nil, ErrDependencyUnavailable("no stable-diffusion library configured")
	}
	lib, err := sd.Open(s.cfg.SDLib)
	if err != nil {
		return nil, ErrDependencyUnavailable(err.Error())
	}
	threads := int32(s.cfg.Threads)
	ctx := lib.Create(spec.Path, threads, "")
	if ctx == 0 {
		return nil, fmt.Errorf("diffusion model %s failed to load", spec.Path)
	}
	return &sdEngine{lib: lib, ctx: ctx, threads: threads}, nil
}

func (e *sdEngine) Txt2Img(ctx context.Context, p ImageParams) ([]RawImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	arr := e.lib.Txt2Img(e.ctx, p.Prompt, p.NegativePrompt, p.CfgScale,
		int32(p.Width), int32(p.Height), int32(p.Steps), p.Seed, int32(p.Batch))
	defer e.lib.ImagesFree(arr)
	return copyImages(arr)
}

func (e *sdEngine) Img2Img(ctx context.Context, init RawImage, p ImageParams) ([]RawImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	arr := e.lib.Img2Img(e.ctx, init.Pix, int32(init.Width), int32(init.Height),
		p.Prompt, p.NegativePrompt, p.Strength, p.CfgScale, int32(p.Steps), p.Seed)
	defer e.lib.ImagesFree(arr)
	return copyImages(arr)
}

func (e *sdEngine) Close() error {
	e.lib.Destroy(e.ctx)
	return nil
}

func copyImages(arr sd.ImageArray) ([]RawImage, error) {
	n := arr.Len()
	if n == 0 {
		return nil, errors.New("generation produced no images")
	}
	out := make([]RawImage, 0, n)
	for i := 0; i < n; i++ {
		w, h, ch := arr.Dims(i)
		pix := arr.Pixels(i)
		if pix == nil || ch != 3 {
			return nil, fmt.Errorf("image %d has unexpected layout (%dx%d, %d channels)", i, w, h, ch)
		}
		cp := make([]byte, len(pix))
		copy(cp, pix)
		out = append(out, RawImage{Width: w, Height: h, Pix: cp})
	}
	return out, nil
}

// Txt2Img generates images from a text prompt against the loaded
// diffusion model, saves each as PNG under the output directory and
// returns them base64-encoded alongside their absolute paths.
func (s *Service) Txt2Img(ctx context.Context, req types.ImageGenerationRequest) (*types.ImageGenerationResponse, error) {
	p, err := imageParams(req)
	if err != nil {
		return nil, err
	}

	a, done, err := s.acquire(ctx, "txt2img", KindDiffusion)
	if err != nil {
		return nil, err
	}
	defer done()

	engine := a.handle.(*DiffusionHandle).engine
	images, err := engine.Txt2Img(ctx, p)
	if err != nil {
		return nil, classifyImageErr(ctx, err)
	}
	return s.imageResponse("txt2img", images)
}

// Img2Img repaints an uploaded image under prompt guidance. init is the
// encoded upload; it is decoded and scaled to the requested dimensions
// before being handed to the engine.
func (s *Service) Img2Img(ctx context.Context, init []byte, req types.ImageGenerationRequest) (*types.ImageGenerationResponse, error) {
	p, err := imageParams(req)
	if err != nil {
		return nil, err
	}
	if len(init) == 0 {
		return nil, ErrValidation("init image must not be empty")
	}
	raw, err := decodeToRaw(init, p.Width, p.Height)
	if err != nil {
		return nil, ErrValidation("init image is not a decodable image: %v", err)
	}

	a, done, err := s.acquire(ctx, "img2img", KindDiffusion)
	if err != nil {
		return nil, err
	}
	defer done()

	engine := a.handle.(*DiffusionHandle).engine
	images, err := engine.Img2Img(ctx, raw, p)
	if err != nil {
		return nil, classifyImageErr(ctx, err)
	}
	return s.imageResponse("img2img", images)
}

func classifyImageErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if IsDependencyUnavailable(err) || IsEngine(err) {
		return err
	}
	return ErrEngine("diffusion", err)
}

func (s *Service) imageResponse(prefix string, images []RawImage) (*types.ImageGenerationResponse, error) {
	resp := &types.ImageGenerationResponse{Created: time.Now().Unix()}
	for _, img := range images {
		saved, err := s.saveImage(prefix, img)
		if err != nil {
			return nil, err
		}
		resp.Data = append(resp.Data, saved)
	}
	return resp, nil
}

func imageParams(req types.ImageGenerationRequest) (ImageParams, error) {
	if req.Prompt == "" {
		return ImageParams{}, ErrValidation("prompt must not be empty")
	}
	p := ImageParams{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		CfgScale:       defaultCfgScale,
		Width:          defaultImageSize,
		Height:         defaultImageSize,
		Steps:          defaultSteps,
		Seed:           req.Seed,
		Strength:       defaultStrength,
		Batch:          1,
	}
	if req.CfgScale != nil {
		if *req.CfgScale <= 0 {
			return ImageParams{}, ErrValidation("cfg_scale must be positive")
		}
		p.CfgScale = float32(*req.CfgScale)
	}
	if req.Width != nil {
		p.Width = *req.Width
	}
	if req.Height != nil {
		p.Height = *req.Height
	}
	for _, d := range [...]struct {
		name string
		v    int
	}{{"width", p.Width}, {"height", p.Height}} {
		if d.v < 64 || d.v > maxImageDimension {
			return ImageParams{}, ErrValidation("%s must be between 64 and %d", d.name, maxImageDimension)
		}
		if d.v%64 != 0 {
			return ImageParams{}, ErrValidation("%s must be a multiple of 64", d.name)
		}
	}
	if req.SampleSteps != nil {
		if *req.SampleSteps < 1 {
			return ImageParams{}, ErrValidation("sample_steps must be at least 1")
		}
		p.Steps = *req.SampleSteps
	}
	if req.Strength != nil {
		if *req.Strength < 0 || *req.Strength > 1 {
			return ImageParams{}, ErrValidation("strength must be in [0, 1]")
		}
		p.Strength = float32(*req.Strength)
	}
	if p.Seed == 0 {
		p.Seed = rand.Int63()
	}
	return p, nil
}
