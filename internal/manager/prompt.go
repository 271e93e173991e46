package manager

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"inferd/pkg/types"
)

const defaultSystemPrompt = "You are a helpful assistant."

// applyCompletionTemplate wraps a bare prompt in the model's completion
// template, if it declares one. The template uses %s for the prompt.
func applyCompletionTemplate(spec ModelSpec, prompt string) string {
	if spec.CompletionTemplate == "" {
		return prompt
	}
	return fmt.Sprintf(spec.CompletionTemplate, prompt)
}

// buildChatPrompt flattens a conversation into the model's chat format.
// A default system prompt is injected when the conversation has none,
// except for models loaded from explicit local paths, whose templates are
// unknown to us.
func buildChatPrompt(spec ModelSpec, messages []types.ChatMessage) (string, error) {
	msgs := messages
	if !spec.Local && !hasSystem(messages) {
		msgs = append([]types.ChatMessage{{Role: "system", Content: defaultSystemPrompt}}, messages...)
	}
	return flattenChat(spec.ChatFormat, msgs)
}

func hasSystem(messages []types.ChatMessage) bool {
	for _, m := range messages {
		if m.Role == "system" {
			return true
		}
	}
	return false
}

func flattenChat(format string, msgs []types.ChatMessage) (string, error) {
	switch format {
	case "", "chatml":
		return flattenChatML(msgs), nil
	case "llama-2":
		return flattenLlama2(msgs), nil
	case "llama-3":
		return flattenLlama3(msgs), nil
	case "gemma":
		return flattenGemma(msgs), nil
	case "vicuna":
		return flattenVicuna(msgs), nil
	default:
		return "", ErrValidation("unknown chat format %q", format)
	}
}

func flattenChatML(msgs []types.ChatMessage) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString("<|im_start|>")
		sb.WriteString(m.Role)
		sb.WriteString("\n")
		sb.WriteString(m.Content)
		sb.WriteString("<|im_end|>\n")
	}
	sb.WriteString("<|im_start|>assistant\n")
	return sb.String()
}

func flattenLlama2(msgs []types.ChatMessage) string {
	var system string
	var sb strings.Builder
	first := true
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = m.Content
		case "user", "tool":
			sb.WriteString("<s>[INST] ")
			if first && system != "" {
				sb.WriteString("<<SYS>>\n")
				sb.WriteString(system)
				sb.WriteString("\n<</SYS>>\n\n")
			}
			first = false
			sb.WriteString(m.Content)
			sb.WriteString(" [/INST]")
		case "assistant":
			sb.WriteString(" ")
			sb.WriteString(m.Content)
			sb.WriteString(" </s>")
		}
	}
	return sb.String()
}

func flattenLlama3(msgs []types.ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("<|begin_of_text|>")
	for _, m := range msgs {
		sb.WriteString("<|start_header_id|>")
		sb.WriteString(m.Role)
		sb.WriteString("<|end_header_id|>\n\n")
		sb.WriteString(m.Content)
		sb.WriteString("<|eot_id|>")
	}
	sb.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return sb.String()
}

// flattenGemma folds the system prompt into the first user turn; the
// format has no system role.
func flattenGemma(msgs []types.ChatMessage) string {
	var system string
	var sb strings.Builder
	pending := true
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = m.Content
			continue
		case "assistant":
			sb.WriteString("<start_of_turn>model\n")
			sb.WriteString(m.Content)
		default:
			sb.WriteString("<start_of_turn>user\n")
			if pending && system != "" {
				sb.WriteString(system)
				sb.WriteString("\n\n")
			}
			pending = false
			sb.WriteString(m.Content)
		}
		sb.WriteString("<end_of_turn>\n")
	}
	sb.WriteString("<start_of_turn>model\n")
	return sb.String()
}

func flattenVicuna(msgs []types.ChatMessage) string {
	var sb strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case "system":
			sb.WriteString(m.Content)
			sb.WriteString("\n\n")
		case "assistant":
			sb.WriteString("ASSISTANT: ")
			sb.WriteString(m.Content)
			sb.WriteString("</s>\n")
		default:
			sb.WriteString("USER: ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("ASSISTANT:")
	return sb.String()
}

// buildToolPrompt renders a function-calling conversation: the tool
// schemas go into a synthetic system prompt instructing the model to
// answer inside <tool_call> tags, and the conversation follows in the
// model's chat format.
func buildToolPrompt(spec ModelSpec, messages []types.ChatMessage, tools []types.Tool) (string, error) {
	var sb strings.Builder
	sb.WriteString("You have access to the following functions. ")
	sb.WriteString("To call a function, respond with a <tool_call> block containing ")
	sb.WriteString(`a JSON object with "name" and "arguments" keys and nothing else.`)
	sb.WriteString("\n\n")
	for _, t := range tools {
		def, err := json.Marshal(t.Function)
		if err != nil {
			return "", ErrValidation("tool %q has unserializable schema: %v", t.Function.Name, err)
		}
		sb.Write(def)
		sb.WriteString("\n")
	}

	msgs := make([]types.ChatMessage, 0, len(messages)+1)
	msgs = append(msgs, types.ChatMessage{Role: "system", Content: sb.String()})
	for _, m := range messages {
		if m.Role == "system" {
			// Fold caller system text under the tool instructions.
			msgs[0].Content += "\n" + m.Content
			continue
		}
		msgs = append(msgs, m)
	}
	return flattenChat(spec.ChatFormat, msgs)
}

type toolCallPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseToolCalls extracts tool invocations from generated content. It
// accepts <tool_call> blocks and, as a fallback, a reply that is one bare
// JSON object with a "name" key.
func parseToolCalls(content string) ([]types.ToolCall, bool) {
	var calls []types.ToolCall
	rest := content
	for {
		start := strings.Index(rest, "<tool_call>")
		if start < 0 {
			break
		}
		rest = rest[start+len("<tool_call>"):]
		end := strings.Index(rest, "</tool_call>")
		if end < 0 {
			break
		}
		if c, ok := decodeToolCall(rest[:end]); ok {
			calls = append(calls, c)
		}
		rest = rest[end+len("</tool_call>"):]
	}
	if len(calls) > 0 {
		return calls, true
	}

	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		if c, ok := decodeToolCall(trimmed); ok {
			return []types.ToolCall{c}, true
		}
	}
	return nil, false
}

func decodeToolCall(raw string) (types.ToolCall, bool) {
	var payload toolCallPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil || payload.Name == "" {
		return types.ToolCall{}, false
	}
	args := "{}"
	if len(payload.Arguments) > 0 {
		args = string(payload.Arguments)
	}
	return types.ToolCall{
		ID:   "call_" + uuid.NewString()[:8],
		Type: "function",
		Function: types.ToolCallFunction{
			Name:      payload.Name,
			Arguments: args,
		},
	}, true
}
