package types

// Object type constants used in response envelopes.
const (
	ObjectTextCompletion      = "text_completion"
	ObjectTextCompletionChunk = "text_completion.chunk"
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectModel               = "model"
	ObjectList                = "list"
)

// Finish reasons reported on terminal choices.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
)

// ActiveModel summarizes the currently loaded handle for /v1/models and
// the welcome page.
type ActiveModel struct {
	// Identifier the model was loaded under.
	// example: llava-v1.6-vicuna-7b
	ID string `json:"id" example:"llava-v1.6-vicuna-7b"`
	// Kind: text, vision, diffusion, or audio.
	// example: vision
	Kind string `json:"kind" example:"vision"`
	// Absolute artifact path on disk.
	Path string `json:"path"`
	// Projector artifact path for vision-language models.
	Projector string `json:"projector,omitempty"`
	// Device the engine ended up on: gpu or cpu.
	// example: gpu
	Device string `json:"device" example:"gpu"`
	// Context length the engine was loaded with.
	// example: 2048
	CtxLen int `json:"ctx_len" example:"2048"`
	// Unix seconds when the handle became ready.
	LoadedAt int64 `json:"loaded_at"`
}
