package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inferd/internal/common/fsutil"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Default values in main.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Model identity resolved at startup.
	Model     string `json:"model" yaml:"model" toml:"model"`
	ModelKind string `json:"model_kind" yaml:"model_kind" toml:"model_kind"`
	LocalPath bool   `json:"local_path" yaml:"local_path" toml:"local_path"`
	HF        bool   `json:"hf" yaml:"hf" toml:"hf"`
	Projector string `json:"projector" yaml:"projector" toml:"projector"`

	// Engine parameters.
	CtxLen    int    `json:"ctx_len" yaml:"ctx_len" toml:"ctx_len"`
	GPULayers int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	Threads   int    `json:"threads" yaml:"threads" toml:"threads"`
	Engine    string `json:"engine" yaml:"engine" toml:"engine"`
	ServerBin string `json:"server_bin" yaml:"server_bin" toml:"server_bin"`
	LlavaLib  string `json:"llava_lib" yaml:"llava_lib" toml:"llava_lib"`
	SDLib     string `json:"sd_lib" yaml:"sd_lib" toml:"sd_lib"`

	// Filesystem locations.
	OutputDir string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	CacheDir  string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	HubURL    string `json:"hub_url" yaml:"hub_url" toml:"hub_url"`

	// Admission control.
	MaxQueue   int `json:"max_queue" yaml:"max_queue" toml:"max_queue"`
	MaxWaitSec int `json:"max_wait_sec" yaml:"max_wait_sec" toml:"max_wait_sec"`

	// HTTP limits.
	MaxUploadMB int `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	Reload   bool   `json:"reload" yaml:"reload" toml:"reload"`

	// Comma-separated allowed CORS origins; "*" allows all.
	CORSOrigins string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Default returns the baseline configuration before file, env, and flag
// overlays are applied.
func Default() Config {
	return Config{
		Addr:        ":8000",
		CtxLen:      2048,
		GPULayers:   -1,
		Engine:      "auto",
		ServerBin:   "llama-server",
		LlavaLib:    "libllava.so",
		SDLib:       "libstable-diffusion.so",
		OutputDir:   "inferd_output",
		CacheDir:    "~/.cache/inferd/models",
		HubURL:      "https://huggingface.co",
		MaxQueue:    8,
		MaxWaitSec:  30,
		MaxUploadMB: 32,
		LogLevel:    "info",
		CORSOrigins: "*",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Normalize expands home-relative paths and makes the output directory
// absolute. Called once after all overlays are merged.
func (c *Config) Normalize() error {
	var err error
	if c.CacheDir, err = fsutil.ExpandHome(c.CacheDir); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	if c.OutputDir, err = fsutil.AbsPath(c.OutputDir); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if c.LocalPath && c.Model != "" {
		if c.Model, err = fsutil.AbsPath(c.Model); err != nil {
			return fmt.Errorf("model path: %w", err)
		}
	}
	if c.Projector != "" {
		if c.Projector, err = fsutil.AbsPath(c.Projector); err != nil {
			return fmt.Errorf("projector path: %w", err)
		}
	}
	return nil
}
