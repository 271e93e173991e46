//go:build !whisper

package manager

// Transcription needs the whisper.cpp bindings compiled in. Without the
// build tag, loading an audio model fails up front instead of at request
// time.
func (s *Service) defaultSpeechEngine(spec ModelSpec) (SpeechEngine, error) {
	return nil, ErrDependencyUnavailable("audio models require a binary built with -tags whisper")
}
