//go:build llama

package manager

import (
	"context"
	"runtime"

	llama "github.com/go-skynet/go-llama.cpp"

	"inferd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with in-process llama
// support.
var llamaBuilt = true

// llamaEngine implements TextEngine over go-llama.cpp. Token-level
// logprobs are not surfaced by this runtime; requests asking for them get
// tokens without the logprob payloads.
type llamaEngine struct {
	model   *llama.LLama
	threads int
}

func (s *Service) newLlamaEngine(spec ModelSpec, gpuLayers int) (TextEngine, error) {
	opts := []llama.ModelOption{
		llama.SetContext(spec.CtxLen),
	}
	if layers := effectiveGPULayers(gpuLayers); layers > 0 {
		opts = append(opts, llama.SetGPULayers(layers))
	}
	m, err := llama.New(spec.Path, opts...)
	if err != nil {
		return nil, err
	}
	threads := s.cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &llamaEngine{model: m, threads: threads}, nil
}

func (e *llamaEngine) Generate(ctx context.Context, prompt string, params GenParams, onToken func(Token) error) (GenResult, error) {
	var count int
	var cbErr error
	e.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if err := onToken(Token{Text: tok}); err != nil {
			cbErr = err
			return false
		}
		count++
		return true
	})
	defer e.model.SetTokenCallback(nil)

	text, err := e.model.Predict(prompt, predictOptions(params, e.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return GenResult{}, ctx.Err()
		}
		if cbErr != nil {
			return GenResult{}, cbErr
		}
		return GenResult{}, err
	}
	if ctx.Err() != nil {
		return GenResult{}, ctx.Err()
	}

	finish := types.FinishStop
	if params.MaxTokens > 0 && count >= params.MaxTokens {
		finish = types.FinishLength
	}
	return GenResult{Content: text, FinishReason: finish}, nil
}

func (e *llamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func predictOptions(p GenParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(p.TopP),
		llama.SetTopK(p.TopK),
		llama.SetTemperature(p.Temperature),
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
