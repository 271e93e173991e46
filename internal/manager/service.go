package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Service owns the single active model and serves every inference
// operation against it. Loads swap the model atomically; requests already
// in flight finish against the handle they started with, and the replaced
// handle is closed once the last of them drains.
type Service struct {
	cfg ServiceConfig
	log zerolog.Logger
	pub EventPublisher

	mu      sync.Mutex // serializes Load and Close
	current atomic.Pointer[active]
	closed  bool
}

// New constructs a Service. No model is loaded until Load or LoadSpec.
func New(cfg ServiceConfig) *Service {
	cfg.applyDefaults()
	return &Service{cfg: cfg, log: cfg.Logger, pub: cfg.Publisher}
}

// Load resolves req through the catalog and swaps the result in.
func (s *Service) Load(ctx context.Context, req ResolveRequest) error {
	if s.cfg.Catalog == nil {
		return ErrValidation("no model catalog configured")
	}
	spec, err := s.cfg.Catalog.Resolve(ctx, req)
	if err != nil {
		return err
	}
	return s.LoadSpec(ctx, spec)
}

// LoadSpec builds a handle for an already resolved spec and makes it the
// active model. On failure the previous model keeps serving.
func (s *Service) LoadSpec(ctx context.Context, spec ModelSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrValidation("service is shut down")
	}

	s.pub.Publish(Event{Name: EventModelLoading, ModelID: spec.ID})
	start := time.Now()
	handle, err := s.buildHandle(spec)
	if err != nil {
		return err
	}

	a := &active{
		handle:   handle,
		gate:     newGate(s.cfg.MaxQueue, s.cfg.MaxWait),
		loadedAt: time.Now(),
	}
	old := s.current.Swap(a)

	modelLoads.WithLabelValues(string(handle.Device())).Inc()
	s.pub.Publish(Event{
		Name:    EventModelReady,
		ModelID: spec.ID,
		Fields:  map[string]any{"device": string(handle.Device())},
	})
	s.log.Info().
		Str("model_id", spec.ID).
		Str("kind", spec.Kind.String()).
		Str("device", string(handle.Device())).
		Int("ctx_len", spec.CtxLen).
		Dur("took", time.Since(start)).
		Msg("model loaded")

	if old != nil {
		old.retire()
		s.pub.Publish(Event{Name: EventModelRetired, ModelID: old.handle.Spec().ID})
	}
	return nil
}

// Ready reports whether a model is loaded and accepting work.
func (s *Service) Ready() bool { return s.current.Load() != nil }

// Info describes the active model.
func (s *Service) Info() (types.ActiveModel, bool) {
	a := s.current.Load()
	if a == nil {
		return types.ActiveModel{}, false
	}
	spec := a.handle.Spec()
	return types.ActiveModel{
		ID:        spec.ID,
		Kind:      spec.Kind.String(),
		Path:      spec.Path,
		Projector: spec.Projector,
		Device:    string(a.handle.Device()),
		CtxLen:    spec.CtxLen,
		LoadedAt:  a.loadedAt.Unix(),
	}, true
}

// Models lists the known model cards, with the active model first.
func (s *Service) Models() []types.ModelCard {
	var cards []types.ModelCard
	if info, ok := s.Info(); ok {
		cards = append(cards, types.ModelCard{
			ID:     info.ID,
			Object: types.ObjectModel,
			Kind:   info.Kind,
			Path:   info.Path,
			Loaded: true,
		})
	}
	if s.cfg.Catalog != nil {
		for _, c := range s.cfg.Catalog.List() {
			if len(cards) > 0 && c.ID == cards[0].ID {
				continue
			}
			cards = append(cards, c)
		}
	}
	return cards
}

// Close retires the active model. Requests already running finish first;
// the last one out closes the handle.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if a := s.current.Swap(nil); a != nil {
		a.retire()
	}
	return nil
}

// acquire pins the active handle for one request, checks its kind and
// claims an admission slot. The returned done func releases both.
func (s *Service) acquire(ctx context.Context, op string, want Kind, alt ...Kind) (*active, func(), error) {
	for {
		a := s.current.Load()
		if a == nil {
			return nil, nil, notLoadedError{}
		}
		if !a.ref() {
			// Swapped out between the load and the pin; pick up the new one.
			continue
		}
		got := a.handle.Kind()
		if got != want && !containsKind(alt, got) {
			a.unref()
			return nil, nil, kindMismatchError{op: op, want: want, got: got}
		}
		release, err := a.gate.acquire(ctx, a.handle.Spec().ID)
		if err != nil {
			a.unref()
			return nil, nil, err
		}
		return a, func() {
			release()
			a.unref()
		}, nil
	}
}

func containsKind(ks []Kind, k Kind) bool {
	for _, c := range ks {
		if c == k {
			return true
		}
	}
	return false
}
