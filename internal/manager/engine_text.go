package manager

// maxGPULayers stands in for "offload everything" when the configured
// layer count is negative.
const maxGPULayers = 999

func (s *Service) defaultTextEngine(spec ModelSpec, gpuLayers int) (TextEngine, error) {
	engine := s.cfg.Engine
	if engine == "" || engine == "auto" {
		if llamaBuilt {
			engine = "llama"
		} else {
			engine = "server"
		}
	}
	switch engine {
	case "llama":
		return s.newLlamaEngine(spec, gpuLayers)
	case "server":
		return s.newServerEngine(spec, gpuLayers)
	default:
		return nil, ErrValidation("unknown engine %q", engine)
	}
}

func effectiveGPULayers(n int) int {
	if n < 0 {
		return maxGPULayers
	}
	return n
}
