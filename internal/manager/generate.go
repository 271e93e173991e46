package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"inferd/pkg/types"
)

const (
	defaultCompletionTemp  = 1.0
	defaultChatTemp        = 0.1
	defaultMaxTokens       = 128
	defaultTopK            = 50
	defaultTopP            = 1.0
	defaultTopLogprobs     = 4
	maxLogprobAlternatives = 20
)

// TokenStream is a single in-flight generation. Exactly one consumer
// ranges over Events until it closes; the producer holds the admission
// slot and the handle pin until then. Err and FinishReason become valid
// once Events is exhausted.
type TokenStream struct {
	ID      string
	Created int64
	Model   string

	ch     chan Token
	cancel context.CancelFunc

	// Written by the producer before the channel closes; the close is the
	// synchronization point for readers.
	err    error
	finish string
}

// Events yields tokens in order and closes when generation ends.
// Buffering is one token deep, so production stays in step with the
// consumer.
func (t *TokenStream) Events() <-chan Token { return t.ch }

// Cancel aborts production. The channel still closes normally, so a
// ranging consumer terminates.
func (t *TokenStream) Cancel() { t.cancel() }

// Err reports how generation ended. Valid only after Events has closed.
func (t *TokenStream) Err() error { return t.err }

// FinishReason reports why generation stopped. Valid only after Events
// has closed.
func (t *TokenStream) FinishReason() string {
	if t.finish == "" {
		return types.FinishStop
	}
	return t.finish
}

// Drain consumes the whole stream and assembles the final result.
// Logprob chunks merge by extending each field list in arrival order, so
// the drained result matches what a streaming consumer would accumulate.
func (t *TokenStream) Drain() (GenResult, error) {
	var sb strings.Builder
	var lp *LogprobChunk
	for tok := range t.ch {
		sb.WriteString(tok.Text)
		lp = mergeLogprobs(lp, tok.Logprobs)
	}
	if err := t.Err(); err != nil {
		return GenResult{}, err
	}
	return GenResult{Content: sb.String(), FinishReason: t.FinishReason(), Logprobs: lp}, nil
}

func mergeLogprobs(dst, src *LogprobChunk) *LogprobChunk {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = &LogprobChunk{}
	}
	dst.Tokens = append(dst.Tokens, src.Tokens...)
	dst.TokenLogprobs = append(dst.TokenLogprobs, src.TokenLogprobs...)
	dst.TopLogprobs = append(dst.TopLogprobs, src.TopLogprobs...)
	dst.TextOffset = append(dst.TextOffset, src.TextOffset...)
	return dst
}

// Result converts a merged chunk to the wire representation.
func (c *LogprobChunk) Result() *types.LogprobResult {
	if c == nil {
		return nil
	}
	return &types.LogprobResult{
		Tokens:        c.Tokens,
		TokenLogprobs: c.TokenLogprobs,
		TopLogprobs:   c.TopLogprobs,
		TextOffset:    c.TextOffset,
	}
}

// startGeneration launches the producer goroutine for one generation.
// done releases the admission slot and handle pin; the producer owns it
// from here and calls it when the stream closes.
func (s *Service) startGeneration(ctx context.Context, engine TextEngine, modelID, idPrefix, prompt string, params GenParams, done func()) *TokenStream {
	gctx, cancel := context.WithCancel(ctx)
	st := &TokenStream{
		ID:      idPrefix + uuid.NewString(),
		Created: time.Now().Unix(),
		Model:   modelID,
		ch:      make(chan Token, 1),
		cancel:  cancel,
	}

	go func() {
		defer done()
		defer cancel()
		defer close(st.ch)

		func() {
			defer func() {
				if r := recover(); r != nil {
					st.err = ErrEngine("generate", fmt.Errorf("engine panic: %v", r))
				}
			}()
			res, err := engine.Generate(gctx, prompt, params, func(tok Token) error {
				select {
				case st.ch <- tok:
					generatedTokens.Inc()
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
			switch {
			case err == nil:
				st.finish = res.FinishReason
			case gctx.Err() != nil:
				st.err = gctx.Err()
			case IsEngine(err) || IsDependencyUnavailable(err):
				st.err = err
			default:
				st.err = ErrEngine("generate", err)
			}
		}()
	}()

	return st
}

// Completion starts text generation for a bare prompt. Works against
// text and vision-language models.
func (s *Service) Completion(ctx context.Context, req types.CompletionRequest) (*TokenStream, error) {
	params, err := completionParams(req)
	if err != nil {
		return nil, err
	}

	a, done, err := s.acquire(ctx, "completion", KindText, KindVisionLanguage)
	if err != nil {
		return nil, err
	}
	spec := a.handle.Spec()
	prompt := applyCompletionTemplate(spec, req.Prompt)
	engine := textEngineOf(a.handle)
	return s.startGeneration(ctx, engine, spec.ID, "cmpl-", prompt, params, done), nil
}

// Chat starts generation for a chat conversation. Works against text and
// vision-language models.
func (s *Service) Chat(ctx context.Context, req types.ChatRequest) (*TokenStream, error) {
	params, err := chatParams(req)
	if err != nil {
		return nil, err
	}

	a, done, err := s.acquire(ctx, "chat completion", KindText, KindVisionLanguage)
	if err != nil {
		return nil, err
	}
	spec := a.handle.Spec()
	prompt, err := buildChatPrompt(spec, req.Messages)
	if err != nil {
		done()
		return nil, err
	}
	engine := textEngineOf(a.handle)
	return s.startGeneration(ctx, engine, spec.ID, "chatcmpl-", prompt, params, done), nil
}

// FunctionCall runs a non-streamed chat turn with tool definitions in the
// prompt and parses any tool invocation out of the reply.
func (s *Service) FunctionCall(ctx context.Context, req types.FunctionCallRequest) (*types.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, ErrValidation("messages must not be empty")
	}
	if len(req.Tools) == 0 {
		return nil, ErrValidation("tools must not be empty")
	}
	for _, tool := range req.Tools {
		if tool.Type != "" && tool.Type != "function" {
			return nil, ErrValidation("unsupported tool type %q", tool.Type)
		}
		if tool.Function.Name == "" {
			return nil, ErrValidation("tool function name must not be empty")
		}
	}

	a, done, err := s.acquire(ctx, "function calling", KindText, KindVisionLanguage)
	if err != nil {
		return nil, err
	}
	spec := a.handle.Spec()
	prompt, err := buildToolPrompt(spec, req.Messages, req.Tools)
	if err != nil {
		done()
		return nil, err
	}

	params := GenParams{
		Temperature: defaultChatTemp,
		TopP:        defaultTopP,
		TopK:        defaultTopK,
		MaxTokens:   defaultMaxTokens,
	}
	st := s.startGeneration(ctx, textEngineOf(a.handle), spec.ID, "chatcmpl-", prompt, params, done)
	res, err := st.Drain()
	if err != nil {
		return nil, err
	}

	msg := types.ChatMessage{Role: "assistant", Content: res.Content}
	finish := res.FinishReason
	if calls, ok := parseToolCalls(res.Content); ok {
		msg.Content = ""
		msg.ToolCalls = calls
		finish = types.FinishToolCalls
	}
	return &types.ChatResponse{
		ID:      st.ID,
		Object:  types.ObjectChatCompletion,
		Created: st.Created,
		Model:   st.Model,
		Choices: []types.ChatChoice{{Index: 0, Message: msg, FinishReason: finish}},
	}, nil
}

func textEngineOf(h Handle) TextEngine {
	switch t := h.(type) {
	case *TextHandle:
		return t.engine
	case *VisionHandle:
		return t.engine
	default:
		// acquire already rejected other kinds.
		return nil
	}
}

func completionParams(req types.CompletionRequest) (GenParams, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return GenParams{}, ErrValidation("prompt must not be empty")
	}
	p := GenParams{
		Temperature: defaultCompletionTemp,
		TopP:        defaultTopP,
		TopK:        defaultTopK,
		MaxTokens:   defaultMaxTokens,
		Stop:        req.StopWords,
		Seed:        int(req.Seed),
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 {
			return GenParams{}, ErrValidation("temperature must not be negative")
		}
		p.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		if *req.TopP <= 0 || *req.TopP > 1 {
			return GenParams{}, ErrValidation("top_p must be in (0, 1]")
		}
		p.TopP = float32(*req.TopP)
	}
	if req.TopK != nil {
		if *req.TopK < 1 {
			return GenParams{}, ErrValidation("top_k must be at least 1")
		}
		p.TopK = *req.TopK
	}
	if req.MaxNewTokens != nil {
		if *req.MaxNewTokens < 1 {
			return GenParams{}, ErrValidation("max_new_tokens must be at least 1")
		}
		p.MaxTokens = *req.MaxNewTokens
	}
	if req.Logprobs != nil {
		if *req.Logprobs < 0 || *req.Logprobs > maxLogprobAlternatives {
			return GenParams{}, ErrValidation("logprobs must be between 0 and %d", maxLogprobAlternatives)
		}
		p.NProbs = *req.Logprobs
	}
	return p, nil
}

func chatParams(req types.ChatRequest) (GenParams, error) {
	if len(req.Messages) == 0 {
		return GenParams{}, ErrValidation("messages must not be empty")
	}
	for i, m := range req.Messages {
		switch m.Role {
		case "system", "user", "assistant", "tool":
		default:
			return GenParams{}, ErrValidation("messages[%d] has unsupported role %q", i, m.Role)
		}
	}
	p := GenParams{
		Temperature: defaultChatTemp,
		TopP:        defaultTopP,
		TopK:        defaultTopK,
		MaxTokens:   defaultMaxTokens,
		Stop:        req.StopWords,
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 {
			return GenParams{}, ErrValidation("temperature must not be negative")
		}
		p.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		if *req.TopP <= 0 || *req.TopP > 1 {
			return GenParams{}, ErrValidation("top_p must be in (0, 1]")
		}
		p.TopP = float32(*req.TopP)
	}
	if req.TopK != nil {
		if *req.TopK < 1 {
			return GenParams{}, ErrValidation("top_k must be at least 1")
		}
		p.TopK = *req.TopK
	}
	if req.MaxTokens != nil {
		if *req.MaxTokens < 1 {
			return GenParams{}, ErrValidation("max_tokens must be at least 1")
		}
		p.MaxTokens = *req.MaxTokens
	}
	if req.Logprobs {
		p.NProbs = defaultTopLogprobs
		if req.TopLogprobs != nil {
			if *req.TopLogprobs < 0 || *req.TopLogprobs > maxLogprobAlternatives {
				return GenParams{}, ErrValidation("top_logprobs must be between 0 and %d", maxLogprobAlternatives)
			}
			p.NProbs = *req.TopLogprobs
		}
	}
	return p, nil
}
