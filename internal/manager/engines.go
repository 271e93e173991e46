package manager

import (
	"context"

	"inferd/internal/llava"
)

// TextEngine abstracts the generation runtime behind Text and
// VisionLanguage handles. Implementations must return promptly when the
// context is canceled.
type TextEngine interface {
	// Generate streams tokens for the given prompt. onToken is invoked for
	// each incremental unit; a non-nil return stops generation.
	Generate(ctx context.Context, prompt string, params GenParams, onToken func(Token) error) (GenResult, error)
	// Close releases the loaded model.
	Close() error
}

// ImageEngine abstracts the diffusion runtime behind Diffusion handles.
type ImageEngine interface {
	Txt2Img(ctx context.Context, p ImageParams) ([]RawImage, error)
	Img2Img(ctx context.Context, init RawImage, p ImageParams) ([]RawImage, error)
	Close() error
}

// SpeechEngine abstracts the transcription runtime behind Audio handles.
// Samples are mono float32 PCM at the engine's expected rate.
type SpeechEngine interface {
	Transcribe(ctx context.Context, samples []float32, p SpeechParams) (string, error)
	Close() error
}

// ProjectorBinding is the seam over the native llava surface used by
// vision-language handles. The concrete implementation forwards to the
// loaded library; tests substitute fakes.
type ProjectorBinding interface {
	EmbedBytes(nThreads int32, data []byte) llava.ImageEmbed
	EmbedFile(nThreads int32, path string) llava.ImageEmbed
	ValidateEmbedSize(ctx llava.LlamaContext) bool
	EvalEmbed(ctx llava.LlamaContext, e llava.ImageEmbed, nBatch int32, nPast *int32) bool
	FreeEmbed(e llava.ImageEmbed)
	Close() error
}
