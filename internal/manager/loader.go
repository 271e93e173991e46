package manager

import (
	"errors"
	"fmt"
)

// buildHandle constructs the runtime handle for a resolved model spec.
// Construction failures surface as engine errors so callers can
// distinguish them from validation problems.
func (s *Service) buildHandle(spec ModelSpec) (Handle, error) {
	switch spec.Kind {
	case KindText:
		engine, device, err := s.newTextEngine(spec)
		if err != nil {
			return nil, ErrEngine("load", err)
		}
		return &TextHandle{spec: spec, device: device, engine: engine}, nil

	case KindVisionLanguage:
		if spec.Projector == "" {
			return nil, ErrValidation("model %q is vision-language but no projector file is configured", spec.ID)
		}
		engine, device, err := s.newTextEngine(spec)
		if err != nil {
			return nil, ErrEngine("load", err)
		}
		projector, err := s.newProjector(spec)
		if err != nil {
			_ = engine.Close()
			return nil, ErrEngine("load projector", err)
		}
		return &VisionHandle{spec: spec, device: device, engine: engine, projector: projector}, nil

	case KindDiffusion:
		factory := s.cfg.ImageEngineFactory
		if factory == nil {
			factory = s.defaultImageEngine
		}
		engine, err := factory(spec)
		if err != nil {
			return nil, ErrEngine("load", err)
		}
		return &DiffusionHandle{spec: spec, engine: engine}, nil

	case KindAudio:
		factory := s.cfg.SpeechEngineFactory
		if factory == nil {
			factory = s.defaultSpeechEngine
		}
		engine, err := factory(spec)
		if err != nil {
			return nil, ErrEngine("load", err)
		}
		return &AudioHandle{spec: spec, engine: engine}, nil

	default:
		return nil, fmt.Errorf("unknown model kind %d", spec.Kind)
	}
}

// newTextEngine loads the generation runtime with the GPU layer count
// the model resolved to. Any failure on the GPU attempt is retried
// exactly once with all layers on the CPU before giving up.
func (s *Service) newTextEngine(spec ModelSpec) (TextEngine, Device, error) {
	factory := s.cfg.TextEngineFactory
	if factory == nil {
		factory = s.defaultTextEngine
	}

	engine, err := factory(spec, spec.GPULayers)
	if err == nil {
		device := DeviceGPU
		if spec.GPULayers == 0 {
			device = DeviceCPU
		}
		return engine, device, nil
	}
	if spec.GPULayers == 0 {
		return nil, "", err
	}

	s.log.Warn().
		Err(err).
		Str("model_id", spec.ID).
		Msg("gpu load failed, retrying on cpu")
	s.pub.Publish(Event{
		Name:    EventGPUFallback,
		ModelID: spec.ID,
		Fields:  map[string]any{"error": err.Error()},
	})
	gpuFallbacks.Inc()

	engine, cpuErr := factory(spec, 0)
	if cpuErr != nil {
		return nil, "", errors.Join(err, cpuErr)
	}
	return engine, DeviceCPU, nil
}

func (s *Service) newProjector(spec ModelSpec) (ProjectorBinding, error) {
	if factory := s.cfg.ProjectorFactory; factory != nil {
		return factory(spec)
	}
	return s.defaultProjector(spec)
}
