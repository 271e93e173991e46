package manager

// Lifecycle event names published by the Service.
const (
	EventModelLoading = "model_loading"
	EventGPUFallback  = "gpu_fallback"
	EventModelReady   = "model_ready"
	EventModelRetired = "model_retired"
)

// Event represents a service lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the service. Implementations should
// be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
