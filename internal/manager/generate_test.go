package manager

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"inferd/pkg/types"
)

func scriptedTokens() []Token {
	return []Token{
		{Text: "Hel", Logprobs: &LogprobChunk{
			Tokens:        []string{"Hel"},
			TokenLogprobs: []float64{-0.1},
			TopLogprobs:   []map[string]float64{{"Hel": -0.1, "He": -2.3}},
			TextOffset:    []int{0},
		}},
		{Text: "lo", Logprobs: &LogprobChunk{
			Tokens:        []string{"lo"},
			TokenLogprobs: []float64{-0.4},
			TopLogprobs:   []map[string]float64{{"lo": -0.4}},
			TextOffset:    []int{3},
		}},
		{Text: "!"},
	}
}

func TestDrainMatchesStreamedAccumulation(t *testing.T) {
	eng := &fakeTextEngine{tokens: scriptedTokens(), finish: types.FinishLength}
	s := newTextService(t, eng)
	ctx := context.Background()
	req := types.CompletionRequest{Prompt: "say hello"}

	st, err := s.Completion(ctx, req)
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	var streamed strings.Builder
	var streamedLp *LogprobChunk
	for tok := range st.Events() {
		streamed.WriteString(tok.Text)
		streamedLp = mergeLogprobs(streamedLp, tok.Logprobs)
	}
	if err := st.Err(); err != nil {
		t.Fatalf("stream err: %v", err)
	}
	if st.FinishReason() != types.FinishLength {
		t.Fatalf("finish = %q", st.FinishReason())
	}

	st2, err := s.Completion(ctx, req)
	if err != nil {
		t.Fatalf("second Completion: %v", err)
	}
	drained, err := st2.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if drained.Content != streamed.String() {
		t.Fatalf("drained %q != streamed %q", drained.Content, streamed.String())
	}
	if drained.FinishReason != types.FinishLength {
		t.Fatalf("drained finish = %q", drained.FinishReason)
	}
	a, _ := json.Marshal(drained.Logprobs)
	b, _ := json.Marshal(streamedLp)
	if string(a) != string(b) {
		t.Fatalf("logprobs diverge:\ndrained:  %s\nstreamed: %s", a, b)
	}
	if got := len(drained.Logprobs.Tokens); got != 2 {
		t.Fatalf("merged token list length = %d", got)
	}
	if drained.Logprobs.TextOffset[1] != 3 {
		t.Fatalf("offsets must extend in order, got %v", drained.Logprobs.TextOffset)
	}
}

func TestCompletionValidation(t *testing.T) {
	s := newTextService(t, &fakeTextEngine{})
	neg := -0.5
	badTopP := 1.5
	zeroTokens := 0
	manyProbs := 99
	cases := []struct {
		name string
		req  types.CompletionRequest
	}{
		{"empty prompt", types.CompletionRequest{Prompt: "   "}},
		{"negative temperature", types.CompletionRequest{Prompt: "p", Temperature: &neg}},
		{"top_p out of range", types.CompletionRequest{Prompt: "p", TopP: &badTopP}},
		{"zero max tokens", types.CompletionRequest{Prompt: "p", MaxNewTokens: &zeroTokens}},
		{"logprobs too large", types.CompletionRequest{Prompt: "p", Logprobs: &manyProbs}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Completion(context.Background(), tc.req); !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCompletionDefaultsAndTemplate(t *testing.T) {
	eng := &fakeTextEngine{tokens: []Token{{Text: "ok"}}}
	cfg := testConfig(t)
	cfg.TextEngineFactory = func(ModelSpec, int) (TextEngine, error) { return eng, nil }
	s := New(cfg)
	spec := ModelSpec{
		ID: "m", Kind: KindText, Path: "m.gguf", GPULayers: -1,
		CompletionTemplate: "### Instruction:\n%s\n### Response:\n",
	}
	if err := s.LoadSpec(context.Background(), spec); err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}

	st, err := s.Completion(context.Background(), types.CompletionRequest{Prompt: "count to three"})
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if _, err := st.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !strings.HasPrefix(st.ID, "cmpl-") {
		t.Fatalf("completion id = %q", st.ID)
	}

	p := eng.params()
	if p.Temperature != 1.0 || p.MaxTokens != 128 || p.TopK != 50 || p.TopP != 1.0 || p.NProbs != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	want := "### Instruction:\ncount to three\n### Response:\n"
	if eng.prompt() != want {
		t.Fatalf("template not applied:\n%q", eng.prompt())
	}
}

func TestChatDefaultsAndPrompt(t *testing.T) {
	eng := &fakeTextEngine{tokens: []Token{{Text: "hi"}}}
	s := newTextService(t, eng)

	req := types.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "Tell me a story."}},
		Logprobs: true,
	}
	st, err := s.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := st.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !strings.HasPrefix(st.ID, "chatcmpl-") {
		t.Fatalf("chat id = %q", st.ID)
	}

	p := eng.params()
	if p.Temperature != 0.1 || p.MaxTokens != 128 || p.NProbs != 4 {
		t.Fatalf("unexpected chat defaults: %+v", p)
	}
	prompt := eng.prompt()
	if !strings.Contains(prompt, "<|im_start|>system\n"+defaultSystemPrompt) {
		t.Fatalf("default system prompt missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "<|im_start|>user\nTell me a story.") {
		t.Fatalf("user turn missing:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "<|im_start|>assistant\n") {
		t.Fatalf("prompt must end with the assistant header:\n%s", prompt)
	}
}

func TestChatValidation(t *testing.T) {
	s := newTextService(t, &fakeTextEngine{})
	cases := []struct {
		name string
		req  types.ChatRequest
	}{
		{"no messages", types.ChatRequest{}},
		{"bad role", types.ChatRequest{Messages: []types.ChatMessage{{Role: "wizard", Content: "x"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Chat(context.Background(), tc.req); !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestStreamCancelStopsProduction(t *testing.T) {
	eng := newGatedTextEngine()
	s := newTextService(t, eng)

	st, err := s.Completion(context.Background(), types.CompletionRequest{Prompt: "slow"})
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	<-eng.entered
	st.Cancel()

	for range st.Events() {
	}
	if !errors.Is(st.Err(), context.Canceled) {
		t.Fatalf("expected canceled, got %v", st.Err())
	}

	// The admission slot must come back after cancellation.
	st2, err := s.Completion(context.Background(), types.CompletionRequest{Prompt: "next"})
	if err != nil {
		t.Fatalf("completion after cancel: %v", err)
	}
	st2.Cancel()
	for range st2.Events() {
	}
}

func TestGenerationErrorSurfacesFromDrain(t *testing.T) {
	eng := &fakeTextEngine{err: errors.New("kv cache blew up")}
	s := newTextService(t, eng)

	st, err := s.Completion(context.Background(), types.CompletionRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	_, err = st.Drain()
	if !IsEngine(err) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if !strings.Contains(err.Error(), "kv cache blew up") {
		t.Fatalf("engine message lost: %v", err)
	}
}

func TestFunctionCallParsesToolInvocation(t *testing.T) {
	reply := `<tool_call>{"name": "get_weather", "arguments": {"city": "Oslo"}}</tool_call>`
	eng := &fakeTextEngine{tokens: []Token{{Text: reply}}}
	s := newTextService(t, eng)

	req := types.FunctionCallRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "weather in Oslo?"}},
		Tools: []types.Tool{{
			Type: "function",
			Function: types.ToolFunction{
				Name:        "get_weather",
				Description: "Look up current weather",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`),
			},
		}},
	}
	resp, err := s.FunctionCall(context.Background(), req)
	if err != nil {
		t.Fatalf("FunctionCall: %v", err)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %d", len(resp.Choices))
	}
	choice := resp.Choices[0]
	if choice.FinishReason != types.FinishToolCalls {
		t.Fatalf("finish = %q", choice.FinishReason)
	}
	if len(choice.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d", len(choice.Message.ToolCalls))
	}
	call := choice.Message.ToolCalls[0]
	if call.Function.Name != "get_weather" {
		t.Fatalf("name = %q", call.Function.Name)
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not JSON: %v", err)
	}
	if args["city"] != "Oslo" {
		t.Fatalf("args = %v", args)
	}
	if !strings.Contains(eng.prompt(), "get_weather") {
		t.Fatal("tool schema missing from the prompt")
	}
}

func TestFunctionCallPlainReply(t *testing.T) {
	eng := &fakeTextEngine{tokens: []Token{{Text: "I cannot help with that."}}}
	s := newTextService(t, eng)

	req := types.FunctionCallRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
		Tools: []types.Tool{{
			Type:     "function",
			Function: types.ToolFunction{Name: "noop"},
		}},
	}
	resp, err := s.FunctionCall(context.Background(), req)
	if err != nil {
		t.Fatalf("FunctionCall: %v", err)
	}
	choice := resp.Choices[0]
	if choice.FinishReason != types.FinishStop {
		t.Fatalf("finish = %q", choice.FinishReason)
	}
	if choice.Message.Content != "I cannot help with that." || len(choice.Message.ToolCalls) != 0 {
		t.Fatalf("unexpected message: %+v", choice.Message)
	}
}

func TestFunctionCallValidation(t *testing.T) {
	s := newTextService(t, &fakeTextEngine{})
	cases := []struct {
		name string
		req  types.FunctionCallRequest
	}{
		{"no messages", types.FunctionCallRequest{Tools: []types.Tool{{Type: "function", Function: types.ToolFunction{Name: "f"}}}}},
		{"no tools", types.FunctionCallRequest{Messages: []types.ChatMessage{{Role: "user", Content: "x"}}}},
		{"bad tool type", types.FunctionCallRequest{
			Messages: []types.ChatMessage{{Role: "user", Content: "x"}},
			Tools:    []types.Tool{{Type: "retrieval", Function: types.ToolFunction{Name: "f"}}},
		}},
		{"unnamed tool", types.FunctionCallRequest{
			Messages: []types.ChatMessage{{Role: "user", Content: "x"}},
			Tools:    []types.Tool{{Type: "function"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.FunctionCall(context.Background(), tc.req); !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
