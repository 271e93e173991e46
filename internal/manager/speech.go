package manager

import "context"

const defaultBeamSize = 5

// Transcribe runs speech-to-text on a staged WAV file against the loaded
// audio model. With p.Translate set the engine translates to English
// instead.
func (s *Service) Transcribe(ctx context.Context, wavPath string, p SpeechParams) (string, error) {
	if p.BeamSize < 0 {
		return "", ErrValidation("beam_size must not be negative")
	}
	if p.BeamSize == 0 {
		p.BeamSize = defaultBeamSize
	}
	if p.Temperature < 0 {
		return "", ErrValidation("temperature must not be negative")
	}

	samples, err := decodeWAV(wavPath)
	if err != nil {
		return "", err
	}

	a, done, err := s.acquire(ctx, "transcription", KindAudio)
	if err != nil {
		return "", err
	}
	defer done()

	text, err := a.handle.(*AudioHandle).engine.Transcribe(ctx, samples, p)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if IsValidation(err) || IsDependencyUnavailable(err) || IsEngine(err) {
			return "", err
		}
		return "", ErrEngine("transcribe", err)
	}
	return text, nil
}
