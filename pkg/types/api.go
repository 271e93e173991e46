package types

import "encoding/json"

// CompletionRequest is the payload for POST /v1/completions.
type CompletionRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Sampling temperature (higher = more random). Defaults to 1.0.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Maximum number of new tokens to generate. Defaults to 128.
	// example: 128
	MaxNewTokens *int `json:"max_new_tokens,omitempty" example:"128"`
	// Top-K sampling: limit candidates to top K tokens. Defaults to 50.
	// example: 50
	TopK *int `json:"top_k,omitempty" example:"50"`
	// Nucleus sampling probability. Defaults to 1.0.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	StopWords []string `json:"stop_words,omitempty" example:"[\"\\n\\n\",\"END\"]"`
	// Number of top alternatives to return log probabilities for. Nil disables logprobs.
	// example: 4
	Logprobs *int `json:"logprobs,omitempty" example:"4"`
	// If true, stream results as server-sent events.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Random seed for reproducibility; 0 or omitted lets the engine choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
}

// ChatMessage is one turn in a chat conversation.
type ChatMessage struct {
	// Role of the author: system, user, assistant, or tool.
	// example: user
	Role string `json:"role" example:"user"`
	// Message text.
	// example: Tell me a story.
	Content string `json:"content" example:"Tell me a story."`
	// Tool calls emitted by the assistant, present only on function-calling responses.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ChatRequest is the payload for POST /v1/chat/completions.
type ChatRequest struct {
	// Conversation history, oldest first.
	Messages []ChatMessage `json:"messages"`
	// Maximum number of new tokens to generate. Defaults to 128.
	// example: 128
	MaxTokens *int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature. Defaults to 0.1.
	// example: 0.1
	Temperature *float64 `json:"temperature,omitempty" example:"0.1"`
	// Top-K sampling cutoff. Defaults to 50.
	TopK *int `json:"top_k,omitempty" example:"50"`
	// Nucleus sampling probability. Defaults to 1.0.
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Optional stop sequences.
	StopWords []string `json:"stop_words,omitempty"`
	// Whether to include log probabilities for generated tokens.
	// example: false
	Logprobs bool `json:"logprobs,omitempty"`
	// Number of top alternatives per token when logprobs is set. Defaults to 4.
	// example: 4
	TopLogprobs *int `json:"top_logprobs,omitempty" example:"4"`
	// If true, stream results as server-sent events.
	Stream bool `json:"stream,omitempty"`
}

// ToolFunction describes one callable function exposed to the model.
type ToolFunction struct {
	// Function name the model should emit.
	// example: get_weather
	Name string `json:"name" example:"get_weather"`
	// Natural-language description of what the function does.
	Description string `json:"description,omitempty"`
	// JSON schema of the function parameters.
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// Tool wraps a function definition in the OpenAI tool envelope.
type Tool struct {
	// Tool type; only "function" is supported.
	// example: function
	Type string `json:"type" example:"function"`
	// The function definition.
	Function ToolFunction `json:"function"`
}

// FunctionCallRequest is the payload for POST /v1/function-calling.
type FunctionCallRequest struct {
	// Conversation history, oldest first.
	Messages []ChatMessage `json:"messages"`
	// Tools the model may call.
	Tools []Tool `json:"tools"`
	// Tool selection policy. Defaults to "auto".
	// example: auto
	ToolChoice string `json:"tool_choice,omitempty" example:"auto"`
}

// ToolCallFunction carries the parsed function name and raw JSON arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ImageGenerationRequest is the payload for POST /v1/txt2img and, as form
// fields, for POST /v1/img2img.
type ImageGenerationRequest struct {
	// Text prompt describing the desired image.
	// example: A girl, standing in a field of flowers, vivid
	Prompt string `json:"prompt" example:"A girl, standing in a field of flowers, vivid"`
	// Concepts to steer away from.
	NegativePrompt string `json:"negative_prompt,omitempty"`
	// Unused for txt2img; retained for wire compatibility.
	ImagePath string `json:"image_path,omitempty"`
	// Classifier-free guidance scale. Defaults to 7.0.
	// example: 7.0
	CfgScale *float64 `json:"cfg_scale,omitempty" example:"7.0"`
	// Output width in pixels. Defaults to 256.
	// example: 256
	Width *int `json:"width,omitempty" example:"256"`
	// Output height in pixels. Defaults to 256.
	// example: 256
	Height *int `json:"height,omitempty" example:"256"`
	// Number of diffusion steps. Defaults to 20.
	// example: 20
	SampleSteps *int `json:"sample_steps,omitempty" example:"20"`
	// Random seed; 0 picks one per request.
	Seed int64 `json:"seed,omitempty"`
	// img2img only: how strongly the init image is repainted (0..1). Defaults to 0.75.
	Strength *float64 `json:"strength,omitempty"`
}

// GeneratedImage is one output image: inline content plus where it was saved.
type GeneratedImage struct {
	// PNG content, base64 encoded.
	Base64 string `json:"base64"`
	// Absolute path of the saved file under the output directory.
	// example: /var/lib/inferd/output/txt2img_6f1c.png
	URL string `json:"url" example:"/var/lib/inferd/output/txt2img_6f1c.png"`
}

// ImageGenerationResponse wraps generated images.
type ImageGenerationResponse struct {
	Created int64            `json:"created"`
	Data    []GeneratedImage `json:"data"`
}

// TranscriptionResponse is returned by the audio endpoints.
type TranscriptionResponse struct {
	// Transcribed (or translated) text.
	Text string `json:"text"`
}

// LogprobResult mirrors the OpenAI logprobs object; fields grow by list
// extension as chunks are merged.
type LogprobResult struct {
	Tokens        []string             `json:"tokens,omitempty"`
	TokenLogprobs []float64            `json:"token_logprobs,omitempty"`
	TopLogprobs   []map[string]float64 `json:"top_logprobs,omitempty"`
	TextOffset    []int                `json:"text_offset,omitempty"`
}

// CompletionChoice is one completion alternative.
type CompletionChoice struct {
	Text         string         `json:"text"`
	Index        int            `json:"index"`
	Logprobs     *LogprobResult `json:"logprobs"`
	FinishReason string         `json:"finish_reason"`
}

// CompletionResponse is the non-streaming reply to /v1/completions.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
}

// ChatChoice is one chat completion alternative.
type ChatChoice struct {
	Index        int            `json:"index"`
	Message      ChatMessage    `json:"message"`
	Logprobs     *LogprobResult `json:"logprobs"`
	FinishReason string         `json:"finish_reason"`
}

// ChatResponse is the non-streaming reply to /v1/chat/completions.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ChatDelta is the incremental message fragment inside a stream chunk.
type ChatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChoice is one choice inside a stream chunk. Completion streams set
// Text; chat streams set Delta.
type StreamChoice struct {
	Index        int            `json:"index"`
	Text         string         `json:"text,omitempty"`
	Delta        *ChatDelta     `json:"delta,omitempty"`
	Logprobs     *LogprobResult `json:"logprobs,omitempty"`
	FinishReason *string        `json:"finish_reason"`
}

// StreamChunk is one server-sent event payload.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// LoadRequest is the payload for POST /v1/models/load.
type LoadRequest struct {
	// Model identifier: hub name, HF reference, or local path.
	// example: llama3.2
	Model string `json:"model" example:"llama3.2"`
	// Model kind: text, vision, diffusion, or audio. Required for local
	// paths and HF references; inferred from the hub name otherwise.
	// example: text
	Kind string `json:"kind,omitempty" example:"text"`
	// Treat Model as a filesystem path.
	LocalPath bool `json:"local_path,omitempty"`
	// Treat Model as a HuggingFace owner/repo reference.
	HF bool `json:"hf,omitempty"`
	// Projector artifact for vision-language models.
	Projector string `json:"projector,omitempty"`
	// Context length for engine loads; 0 keeps the server default.
	CtxLen int `json:"ctx_len,omitempty"`
}

// ModelCard describes one model known to the server.
type ModelCard struct {
	// Identifier usable in LoadRequest.Model.
	// example: llama3.2
	ID string `json:"id" example:"llama3.2"`
	// Always "model".
	Object string `json:"object"`
	// Model kind when known.
	Kind string `json:"kind,omitempty"`
	// Artifact location on disk.
	Path string `json:"path,omitempty"`
	// Whether this model is the active handle.
	Loaded bool `json:"loaded"`
	// Artifact size in bytes, when cached locally.
	SizeBytes int64 `json:"size_bytes,omitempty"`
}

// ModelsResponse wraps GET /v1/models.
type ModelsResponse struct {
	Object string      `json:"object"`
	Data   []ModelCard `json:"data"`
}

// ErrorDetail carries the structured error content.
type ErrorDetail struct {
	// Human-readable message.
	// example: prompt must not be empty
	Message string `json:"message" example:"prompt must not be empty"`
	// Stable error category, e.g. invalid_request_error or engine_error.
	// example: invalid_request_error
	Type string `json:"type" example:"invalid_request_error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ErrorResponse is the consistent JSON error payload.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
