package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

const (
	defaultMaxQueue = 8
	defaultMaxWait  = 30 * time.Second
	defaultNBatch   = 512
)

// ResolveRequest names a model to be located and staged for loading.
type ResolveRequest struct {
	Model     string
	Kind      string
	LocalPath bool
	HF        bool
	Projector string
	CtxLen    int
}

// Catalog locates model artifacts and lists what is available. The
// registry package provides the production implementation.
type Catalog interface {
	Resolve(ctx context.Context, req ResolveRequest) (ModelSpec, error)
	List() []types.ModelCard
}

// ServiceConfig carries the collaborators and tunables for a Service.
// Zero values select sensible defaults; the factory fields exist so tests
// can substitute in-memory engines.
type ServiceConfig struct {
	Logger    zerolog.Logger
	Publisher EventPublisher
	Catalog   Catalog

	// Engine selects the text runtime: "auto", "llama" or "server".
	Engine    string
	ServerBin string
	LlavaLib  string
	SDLib     string
	OutputDir string
	Threads   int

	// Admission control for generation requests.
	MaxQueue int
	MaxWait  time.Duration

	// Factories override the built-in engine constructors. A nil factory
	// selects the production one.
	TextEngineFactory   func(spec ModelSpec, gpuLayers int) (TextEngine, error)
	ImageEngineFactory  func(spec ModelSpec) (ImageEngine, error)
	SpeechEngineFactory func(spec ModelSpec) (SpeechEngine, error)
	ProjectorFactory    func(spec ModelSpec) (ProjectorBinding, error)
}

func (c *ServiceConfig) applyDefaults() {
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Engine == "" {
		c.Engine = "auto"
	}
	if c.ServerBin == "" {
		c.ServerBin = "llama-server"
	}
	if c.OutputDir == "" {
		c.OutputDir = "inferd_output"
	}
	if c.MaxQueue <= 0 {
		c.MaxQueue = defaultMaxQueue
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
}
