package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

const (
	serverReadyTimeout = 2 * time.Minute
	serverStopGrace    = 2 * time.Second
)

// serverEngine implements TextEngine over a spawned llama-server process
// serving one model. The process lives as long as the engine; Close
// terminates it.
type serverEngine struct {
	log     zerolog.Logger
	client  *http.Client
	baseURL string
	cmd     *exec.Cmd
	waitCh  chan error
}

func (s *Service) newServerEngine(spec ModelSpec, gpuLayers int) (TextEngine, error) {
	host := "127.0.0.1"
	port, err := pickFreePort(host)
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	args := []string{
		"-m", spec.Path,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
	if spec.CtxLen > 0 {
		args = append(args, "-c", strconv.Itoa(spec.CtxLen))
	}
	if layers := effectiveGPULayers(gpuLayers); layers > 0 {
		args = append(args, "-ngl", strconv.Itoa(layers))
	}
	if s.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(s.cfg.Threads))
	}
	if spec.Projector != "" {
		args = append(args, "--mmproj", spec.Projector)
	}

	cmd := exec.Command(s.cfg.ServerBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("start %s: %v", s.cfg.ServerBin, err))
	}
	s.log.Info().
		Str("model_id", spec.ID).
		Int("pid", cmd.Process.Pid).
		Str("url", baseURL).
		Msg("llama-server started")

	e := &serverEngine{
		log:     s.log,
		client:  &http.Client{},
		baseURL: baseURL,
		cmd:     cmd,
		waitCh:  make(chan error, 1),
	}
	go func() { e.waitCh <- cmd.Wait() }()

	if err := e.awaitReady(&stderr); err != nil {
		return nil, err
	}
	return e, nil
}

// awaitReady polls the server's model listing until it answers, the
// process exits, or the deadline passes.
func (e *serverEngine) awaitReady(stderr *bytes.Buffer) error {
	deadline := time.Now().Add(serverReadyTimeout)
	for {
		if time.Now().After(deadline) {
			e.kill()
			return fmt.Errorf("llama-server not ready in time: %s", e.baseURL)
		}
		select {
		case werr := <-e.waitCh:
			tail := stderr.String()
			if len(tail) > 4096 {
				tail = tail[len(tail)-4096:]
			}
			if werr != nil {
				return fmt.Errorf("llama-server exited early: %v; stderr tail: %s", werr, tail)
			}
			return fmt.Errorf("llama-server exited before ready: %s", e.baseURL)
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/models", nil)
		resp, err := e.client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				cancel()
				return nil
			}
		}
		cancel()
		time.Sleep(100 * time.Millisecond)
	}
}

// openAICompletionRequest is the payload for the server's /v1/completions.
type openAICompletionRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float32  `json:"temperature"`
	TopP        float32  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed,omitempty"`
	Logprobs    int      `json:"logprobs,omitempty"`
	Stream      bool     `json:"stream"`
}

// openAIStreamChoice covers both stream shapes llama-server emits:
// completion chunks carry text, chat-style chunks carry delta.content.
type openAIStreamChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	Logprobs *struct {
		Tokens        []string             `json:"tokens"`
		TokenLogprobs []float64            `json:"token_logprobs"`
		TopLogprobs   []map[string]float64 `json:"top_logprobs"`
		TextOffset    []int                `json:"text_offset"`
	} `json:"logprobs"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Object  string               `json:"object"`
	Choices []openAIStreamChoice `json:"choices"`
}

func (e *serverEngine) Generate(ctx context.Context, prompt string, params GenParams, onToken func(Token) error) (GenResult, error) {
	payload := openAICompletionRequest{
		Prompt:      prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		Stop:        params.Stop,
		Seed:        params.Seed,
		Logprobs:    params.NProbs,
		Stream:      true,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return GenResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return GenResult{}, ctx.Err()
		}
		return GenResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return GenResult{}, fmt.Errorf("llama-server http error: %s: %s", resp.Status, string(b))
	}

	var final GenResult
	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			l := strings.TrimSpace(line)
			if l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
				data := strings.TrimSpace(l[len("data:"):])
				if data == "[DONE]" {
					break
				}
				var msg openAIStreamResponse
				if e := json.Unmarshal([]byte(data), &msg); e == nil && len(msg.Choices) > 0 {
					choice := msg.Choices[0]
					tok := Token{Text: choice.Text}
					if tok.Text == "" {
						tok.Text = choice.Delta.Content
					}
					if lp := choice.Logprobs; lp != nil && len(lp.Tokens) > 0 {
						tok.Logprobs = &LogprobChunk{
							Tokens:        lp.Tokens,
							TokenLogprobs: lp.TokenLogprobs,
							TopLogprobs:   lp.TopLogprobs,
							TextOffset:    lp.TextOffset,
						}
					}
					if tok.Text != "" || tok.Logprobs != nil {
						final.Content += tok.Text
						if cbErr := onToken(tok); cbErr != nil {
							return final, cbErr
						}
					}
					if fr := choice.FinishReason; fr != "" {
						final.FinishReason = fr
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return final, ctx.Err()
			}
			return final, err
		}
	}
	if final.FinishReason == "" {
		final.FinishReason = types.FinishStop
	}
	return final, nil
}

// Close terminates the spawned server, SIGTERM first, then kill.
func (e *serverEngine) Close() error {
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	_ = e.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-e.waitCh:
	case <-time.After(serverStopGrace):
		e.kill()
	}
	return nil
}

func (e *serverEngine) kill() {
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", host+":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr := l.Addr().String()
	lastColon := strings.LastIndex(addr, ":")
	if lastColon < 0 {
		return 0, fmt.Errorf("unexpected addr: %s", addr)
	}
	return strconv.Atoi(addr[lastColon+1:])
}
