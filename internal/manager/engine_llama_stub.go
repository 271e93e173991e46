//go:build !llama

package manager

// Compiled when the 'llama' build tag is NOT set, keeping default builds
// CGO-free. The real engine lives in engine_llama.go (tagged 'llama');
// without it, text models are served by the llama-server engine.

var llamaBuilt = false

func (s *Service) newLlamaEngine(spec ModelSpec, gpuLayers int) (TextEngine, error) {
	return nil, ErrDependencyUnavailable("in-process llama support not built (missing 'llama' build tag)")
}
