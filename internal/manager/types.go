package manager

import (
	"fmt"
	"strings"
)

// Kind classifies what a loaded model can do. The set is closed; dispatch
// sites switch exhaustively over the handle types derived from it.
type Kind int

const (
	KindText Kind = iota
	KindVisionLanguage
	KindDiffusion
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVisionLanguage:
		return "vision"
	case KindDiffusion:
		return "diffusion"
	case KindAudio:
		return "audio"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps wire spellings to a Kind. Legacy spellings from the
// Python-era CLI are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "nlp":
		return KindText, nil
	case "vision", "vision-language", "multimodal":
		return KindVisionLanguage, nil
	case "diffusion", "computer-vision", "cv", "image":
		return KindDiffusion, nil
	case "audio", "speech":
		return KindAudio, nil
	default:
		return 0, fmt.Errorf("unknown model kind %q", s)
	}
}

// Device reports where an engine ended up after loading.
type Device string

const (
	DeviceGPU Device = "gpu"
	DeviceCPU Device = "cpu"
)

// ModelSpec is a fully resolved load request: identifier plus everything
// the loader needs to construct a handle.
type ModelSpec struct {
	ID        string
	Kind      Kind
	Path      string
	Projector string
	CtxLen    int
	GPULayers int
	// ChatFormat names the template used to flatten chat messages.
	ChatFormat string
	// CompletionTemplate wraps bare completion prompts when set.
	CompletionTemplate string
	// Local marks models loaded from an explicit filesystem path; they skip
	// the injected default system prompt.
	Local bool
}

// GenParams are normalized sampling parameters handed to a text engine.
type GenParams struct {
	Temperature float32
	TopP        float32
	TopK        int
	MaxTokens   int
	Stop        []string
	Seed        int
	NProbs      int
}

// Token is one incremental unit from a text engine.
type Token struct {
	Text     string
	Logprobs *LogprobChunk
}

// LogprobChunk carries per-token log-probability data aligned with the
// OpenAI field names.
type LogprobChunk struct {
	Tokens        []string
	TokenLogprobs []float64
	TopLogprobs   []map[string]float64
	TextOffset    []int
}

// GenResult summarizes a finished generation.
type GenResult struct {
	Content      string
	FinishReason string
	Logprobs     *LogprobChunk
}

// ImageParams are normalized diffusion parameters.
type ImageParams struct {
	Prompt         string
	NegativePrompt string
	CfgScale       float32
	Width          int
	Height         int
	Steps          int
	Seed           int64
	Strength       float32
	Batch          int
}

// RawImage is a decoded RGB image (3 bytes per pixel, row-major).
type RawImage struct {
	Width  int
	Height int
	Pix    []byte
}

// SpeechParams are normalized transcription parameters.
type SpeechParams struct {
	Language    string
	Translate   bool
	BeamSize    int
	Temperature float32
}
