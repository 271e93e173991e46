package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// Service defines the manager surface the HTTP layer depends on.
type Service interface {
	Ready() bool
	Info() (types.ActiveModel, bool)
	Models() []types.ModelCard
	Load(ctx context.Context, req manager.ResolveRequest) error

	Completion(ctx context.Context, req types.CompletionRequest) (*manager.TokenStream, error)
	Chat(ctx context.Context, req types.ChatRequest) (*manager.TokenStream, error)
	FunctionCall(ctx context.Context, req types.FunctionCallRequest) (*types.ChatResponse, error)

	Txt2Img(ctx context.Context, req types.ImageGenerationRequest) (*types.ImageGenerationResponse, error)
	Img2Img(ctx context.Context, init []byte, req types.ImageGenerationRequest) (*types.ImageGenerationResponse, error)

	Transcribe(ctx context.Context, wavPath string, p manager.SpeechParams) (string, error)
}

// reloadEnabled gates POST /v1/models/load. Off unless the daemon was
// started with --reload.
var reloadEnabled bool

// SetReloadEnabled toggles the model load endpoint.
func SetReloadEnabled(on bool) { reloadEnabled = on }

// NewMux assembles the HTTP API.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(requestLogger)

	r.Get("/", handleRoot(svc))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", handleModels(svc))
		r.Post("/models/load", handleModelLoad(svc))

		r.Post("/completions", handleCompletions(svc))
		r.Post("/chat/completions", handleChatCompletions(svc))
		r.Post("/function-calling", handleFunctionCalling(svc))

		r.Post("/txt2img", handleTxt2Img(svc))
		r.Post("/img2img", handleImg2Img(svc))

		r.Post("/audio/transcriptions", handleTranscription(svc, false))
		r.Post("/audio/translations", handleTranscription(svc, true))
	})

	MountSwagger(r)
	return r
}
