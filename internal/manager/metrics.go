package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	modelLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Name:      "model_loads_total",
			Help:      "Completed model loads by target device.",
		},
		[]string{"device"},
	)

	gpuFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Name:      "gpu_fallbacks_total",
			Help:      "Model loads that fell back from GPU to CPU.",
		},
	)

	generatedTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Name:      "generated_tokens_total",
			Help:      "Tokens emitted across all generation requests.",
		},
	)
)

func init() {
	prometheus.MustRegister(modelLoads, gpuFallbacks, generatedTokens)
}
