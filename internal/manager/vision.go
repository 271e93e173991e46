package manager

import (
	"errors"
	"fmt"
	"runtime"

	"inferd/internal/llava"
)

const clipVerbosity = 1

// projector implements ProjectorBinding over one loaded clip model.
type projector struct {
	lib  *llava.Lib
	clip llava.ClipContext
}

func (s *Service) defaultProjector(spec ModelSpec) (ProjectorBinding, error) {
	if s.cfg.LlavaLib == "" {
		return nil, ErrDependencyUnavailable("no llava library configured")
	}
	lib, err := llava.Open(s.cfg.LlavaLib)
	if err != nil {
		return nil, ErrDependencyUnavailable(err.Error())
	}
	clip := lib.ClipModelLoad(spec.Projector, clipVerbosity)
	if clip == 0 {
		return nil, fmt.Errorf("clip projector %s failed to load", spec.Projector)
	}
	return &projector{lib: lib, clip: clip}, nil
}

func (p *projector) EmbedBytes(nThreads int32, data []byte) llava.ImageEmbed {
	return p.lib.ImageEmbedMakeWithBytes(p.clip, nThreads, data)
}

func (p *projector) EmbedFile(nThreads int32, path string) llava.ImageEmbed {
	return p.lib.ImageEmbedMakeWithFilename(p.clip, nThreads, path)
}

func (p *projector) ValidateEmbedSize(ctx llava.LlamaContext) bool {
	return p.lib.ValidateEmbedSize(ctx, p.clip)
}

func (p *projector) EvalEmbed(ctx llava.LlamaContext, e llava.ImageEmbed, nBatch int32, nPast *int32) bool {
	return p.lib.EvalImageEmbed(ctx, e, nBatch, nPast)
}

func (p *projector) FreeEmbed(e llava.ImageEmbed) { p.lib.ImageEmbedFree(e) }

func (p *projector) Close() error {
	p.lib.ClipFree(p.clip)
	return nil
}

// ImageSession feeds image embeddings into a text context in order. Each
// embedding is owned by the session from creation to free, and the
// size check runs before the first evaluation; a mismatch stops the
// session before the context is touched.
type ImageSession struct {
	binding ProjectorBinding
	ctx     llava.LlamaContext
	nBatch  int32
	threads int32
	nPast   int32
	checked bool
}

// NewImageSession starts an embedding session against the given text
// context. nBatch and threads fall back to defaults when non-positive.
func (h *VisionHandle) NewImageSession(ctx llava.LlamaContext, nBatch, threads int32) *ImageSession {
	if nBatch <= 0 {
		nBatch = defaultNBatch
	}
	if threads <= 0 {
		threads = int32(runtime.NumCPU())
	}
	return &ImageSession{binding: h.projector, ctx: ctx, nBatch: nBatch, threads: threads}
}

// FeedBytes embeds an encoded image and evaluates it into the context.
func (s *ImageSession) FeedBytes(data []byte) error {
	if len(data) == 0 {
		return ErrValidation("image payload must not be empty")
	}
	embed := s.binding.EmbedBytes(s.threads, data)
	if embed == 0 {
		return ErrEngine("image embed", errors.New("embedding construction failed"))
	}
	defer s.binding.FreeEmbed(embed)
	return s.eval(embed)
}

// FeedFile embeds an image file and evaluates it into the context.
func (s *ImageSession) FeedFile(path string) error {
	embed := s.binding.EmbedFile(s.threads, path)
	if embed == 0 {
		return ErrEngine("image embed", fmt.Errorf("embedding construction failed for %s", path))
	}
	defer s.binding.FreeEmbed(embed)
	return s.eval(embed)
}

func (s *ImageSession) eval(embed llava.ImageEmbed) error {
	if !s.checked {
		if !s.binding.ValidateEmbedSize(s.ctx) {
			return ErrEngine("image embed", errors.New("projector embedding size does not match the text context"))
		}
		s.checked = true
	}
	if !s.binding.EvalEmbed(s.ctx, embed, s.nBatch, &s.nPast) {
		return ErrEngine("image embed", errors.New("embedding evaluation failed"))
	}
	return nil
}

// NPast reports the context position after the images fed so far.
func (s *ImageSession) NPast() int32 { return s.nPast }
