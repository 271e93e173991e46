package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"inferd/internal/config"
)

// defaultModel is pulled at startup when nothing else is configured,
// matching the Python-era service's out-of-the-box model.
const defaultModel = "gemma"

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "1" || strings.EqualFold(v, "true")
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// parseConfig resolves the effective configuration with precedence
// flags > environment > config file > defaults. Flag defaults carry the
// environment values, so the merge only has to decide between the file
// layer and the flag/env layer per knob.
func parseConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("inferd", flag.ContinueOnError)
	base := config.Default()

	addr := fs.String("addr", envOr("INFERD_ADDR", base.Addr), "HTTP listen address, e.g. :8000")
	configPath := fs.String("config", envOr("INFERD_CONFIG", ""), "config file (.yaml, .json or .toml)")
	model := fs.String("model", envOr("INFERD_MODEL", defaultModel), "model to load at startup: catalog name, local path or HF ref (empty starts without a model)")
	kind := fs.String("model-kind", envOr("INFERD_MODEL_KIND", ""), "model kind for --local-path/--hf loads: text, vision, diffusion or audio")
	localPath := fs.Bool("local-path", envBool("INFERD_LOCAL_PATH"), "treat --model as a filesystem path")
	hf := fs.Bool("hf", envBool("INFERD_HF"), "treat --model as a HuggingFace owner/repo/file ref")
	projector := fs.String("projector", envOr("INFERD_PROJECTOR", ""), "multimodal projector path override")
	nctx := fs.Int("nctx", envInt("INFERD_CTX", base.CtxLen), "context length for engine loads")
	gpuLayers := fs.Int("gpu-layers", base.GPULayers, "GPU layers to offload (-1 = all, 0 = CPU only)")
	threads := fs.Int("threads", base.Threads, "native engine threads (0 = engine default)")
	engine := fs.String("engine", base.Engine, "text engine: auto, llama or server")
	serverBin := fs.String("server-bin", base.ServerBin, "llama-server binary used by engine=server")
	llavaLib := fs.String("llava-lib", base.LlavaLib, "shared library with the clip/llava surface")
	sdLib := fs.String("sd-lib", base.SDLib, "shared library with the stable-diffusion surface")
	outputDir := fs.String("output-dir", envOr("INFERD_OUTPUT_DIR", base.OutputDir), "directory for generated images")
	cacheDir := fs.String("cache-dir", envOr("INFERD_CACHE_DIR", base.CacheDir), "model artifact cache directory")
	hubURL := fs.String("hub-url", envOr("INFERD_HUB_URL", base.HubURL), "model hub base URL")
	maxQueue := fs.Int("max-queue", base.MaxQueue, "requests allowed to queue per model")
	maxWaitSec := fs.Int("max-wait-sec", base.MaxWaitSec, "seconds a queued request may wait for its slot")
	maxUploadMB := fs.Int("max-upload-mb", base.MaxUploadMB, "multipart upload limit in MB")
	logLevel := fs.String("log-level", envOr("INFERD_LOG_LEVEL", base.LogLevel), "log level: trace, debug, info, warn, error or disabled")
	reload := fs.Bool("reload", envBool("INFERD_RELOAD"), "enable POST /v1/models/load")
	corsOrigins := fs.String("cors-origins", base.CORSOrigins, "comma-separated allowed CORS origins")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg := base
	cfg.Model = defaultModel
	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			return config.Config{}, err
		}
		overlayFile(&cfg, fileCfg)
	}

	// Flag and env layers beat the file. A knob applies when its flag was
	// passed or its environment variable is present.
	apply := func(flagName, envKey string, assign func()) {
		if set[flagName] || (envKey != "" && os.Getenv(envKey) != "") {
			assign()
		}
	}
	apply("addr", "INFERD_ADDR", func() { cfg.Addr = *addr })
	apply("model", "INFERD_MODEL", func() { cfg.Model = *model })
	apply("model-kind", "INFERD_MODEL_KIND", func() { cfg.ModelKind = *kind })
	apply("local-path", "INFERD_LOCAL_PATH", func() { cfg.LocalPath = *localPath })
	apply("hf", "INFERD_HF", func() { cfg.HF = *hf })
	apply("projector", "INFERD_PROJECTOR", func() { cfg.Projector = *projector })
	apply("nctx", "INFERD_CTX", func() { cfg.CtxLen = *nctx })
	apply("gpu-layers", "", func() { cfg.GPULayers = *gpuLayers })
	apply("threads", "", func() { cfg.Threads = *threads })
	apply("engine", "", func() { cfg.Engine = *engine })
	apply("server-bin", "", func() { cfg.ServerBin = *serverBin })
	apply("llava-lib", "", func() { cfg.LlavaLib = *llavaLib })
	apply("sd-lib", "", func() { cfg.SDLib = *sdLib })
	apply("output-dir", "INFERD_OUTPUT_DIR", func() { cfg.OutputDir = *outputDir })
	apply("cache-dir", "INFERD_CACHE_DIR", func() { cfg.CacheDir = *cacheDir })
	apply("hub-url", "INFERD_HUB_URL", func() { cfg.HubURL = *hubURL })
	apply("max-queue", "", func() { cfg.MaxQueue = *maxQueue })
	apply("max-wait-sec", "", func() { cfg.MaxWaitSec = *maxWaitSec })
	apply("max-upload-mb", "", func() { cfg.MaxUploadMB = *maxUploadMB })
	apply("log-level", "INFERD_LOG_LEVEL", func() { cfg.LogLevel = *logLevel })
	apply("reload", "INFERD_RELOAD", func() { cfg.Reload = *reload })
	apply("cors-origins", "", func() { cfg.CORSOrigins = *corsOrigins })

	if err := cfg.Normalize(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// overlayFile copies set fields from a loaded config file onto cfg.
// File booleans can only raise flags; false is indistinguishable from
// absent in all three formats without pointer fields.
func overlayFile(cfg *config.Config, file config.Config) {
	for _, s := range []struct {
		dst *string
		src string
	}{
		{&cfg.Addr, file.Addr},
		{&cfg.Model, file.Model},
		{&cfg.ModelKind, file.ModelKind},
		{&cfg.Projector, file.Projector},
		{&cfg.Engine, file.Engine},
		{&cfg.ServerBin, file.ServerBin},
		{&cfg.LlavaLib, file.LlavaLib},
		{&cfg.SDLib, file.SDLib},
		{&cfg.OutputDir, file.OutputDir},
		{&cfg.CacheDir, file.CacheDir},
		{&cfg.HubURL, file.HubURL},
		{&cfg.LogLevel, file.LogLevel},
		{&cfg.CORSOrigins, file.CORSOrigins},
	} {
		if s.src != "" {
			*s.dst = s.src
		}
	}
	for _, n := range []struct {
		dst *int
		src int
	}{
		{&cfg.CtxLen, file.CtxLen},
		{&cfg.Threads, file.Threads},
		{&cfg.MaxQueue, file.MaxQueue},
		{&cfg.MaxWaitSec, file.MaxWaitSec},
		{&cfg.MaxUploadMB, file.MaxUploadMB},
	} {
		if n.src != 0 {
			*n.dst = n.src
		}
	}
	if file.GPULayers != 0 {
		cfg.GPULayers = file.GPULayers
	}
	if file.LocalPath {
		cfg.LocalPath = true
	}
	if file.HF {
		cfg.HF = true
	}
	if file.Reload {
		cfg.Reload = true
	}
}

// splitCSV splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
