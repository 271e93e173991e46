//go:build whisper

package manager

import (
	"context"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperEngine implements SpeechEngine over the whisper.cpp bindings.
// The model loads once; each request gets a fresh decoding context.
type whisperEngine struct {
	model   whisper.Model
	threads int
}

func (s *Service) defaultSpeechEngine(spec ModelSpec) (SpeechEngine, error) {
	model, err := whisper.New(spec.Path)
	if err != nil {
		return nil, err
	}
	return &whisperEngine{model: model, threads: s.cfg.Threads}, nil
}

func (e *whisperEngine) Transcribe(ctx context.Context, samples []float32, p SpeechParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", err
	}
	if p.Language != "" {
		if err := wctx.SetLanguage(p.Language); err != nil {
			return "", ErrValidation("unsupported language %q", p.Language)
		}
	}
	wctx.SetTranslate(p.Translate)
	wctx.SetBeamSize(p.BeamSize)
	wctx.SetTemperature(p.Temperature)
	if e.threads > 0 {
		wctx.SetThreads(uint(e.threads))
	}

	// Process runs to completion; whisper.cpp offers no mid-run abort.
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", err
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(strings.TrimSpace(seg.Text))
	}
	return sb.String(), nil
}

func (e *whisperEngine) Close() error {
	return e.model.Close()
}
