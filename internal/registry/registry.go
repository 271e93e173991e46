package registry

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/internal/manager"
	"inferd/pkg/types"
)

const defaultCtxLen = 2048

// Config carries the registry's collaborators and load defaults.
type Config struct {
	Logger   zerolog.Logger
	HubURL   string
	CacheDir string

	// Defaults applied to resolved specs when the request leaves them unset.
	CtxLen    int
	GPULayers int

	// Client overrides the HTTP client used for hub pulls.
	Client *http.Client
}

// Registry resolves model identifiers to loadable artifacts. It implements
// manager.Catalog: short names come from the built-in catalog and are pulled
// from the hub into the cache directory, explicit paths and HuggingFace
// references are taken as-is.
type Registry struct {
	log       zerolog.Logger
	hubURL    string
	cacheDir  string
	ctxLen    int
	gpuLayers int
	client    *http.Client
}

// New builds a Registry. The cache directory is created lazily on the
// first download.
func New(cfg Config) (*Registry, error) {
	if cfg.HubURL == "" {
		cfg.HubURL = "https://huggingface.co"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "~/.cache/inferd/models"
	}
	if cfg.CtxLen <= 0 {
		cfg.CtxLen = defaultCtxLen
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	dir, err := fsutil.ExpandHome(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	if dir, err = fsutil.AbsPath(dir); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return &Registry{
		log:       cfg.Logger,
		hubURL:    strings.TrimRight(cfg.HubURL, "/"),
		cacheDir:  dir,
		ctxLen:    cfg.CtxLen,
		gpuLayers: cfg.GPULayers,
		client:    cfg.Client,
	}, nil
}

// Resolve maps a model identifier to a fully specified load request.
// Local paths and HuggingFace references need an explicit kind; catalog
// names carry their own. Hub artifacts are downloaded into the cache on
// first use.
func (r *Registry) Resolve(ctx context.Context, req manager.ResolveRequest) (manager.ModelSpec, error) {
	name := strings.TrimSpace(req.Model)
	if name == "" {
		return manager.ModelSpec{}, manager.ErrValidation("model identifier must not be empty")
	}
	switch {
	case req.LocalPath:
		return r.resolveLocal(name, req)
	case req.HF:
		return r.resolveHF(ctx, name, req)
	default:
		return r.resolveCatalog(ctx, name, req)
	}
}

func (r *Registry) resolveLocal(path string, req manager.ResolveRequest) (manager.ModelSpec, error) {
	if req.Kind == "" {
		return manager.ModelSpec{}, manager.ErrValidation("model kind is required for local paths")
	}
	kind, err := manager.ParseKind(req.Kind)
	if err != nil {
		return manager.ModelSpec{}, manager.ErrValidation("%v", err)
	}
	abs, err := fsutil.AbsPath(path)
	if err != nil {
		return manager.ModelSpec{}, fmt.Errorf("model path: %w", err)
	}
	if !fsutil.PathExists(abs) {
		return manager.ModelSpec{}, manager.ErrModelNotFound(path)
	}
	return manager.ModelSpec{
		ID:        path,
		Kind:      kind,
		Path:      abs,
		Projector: req.Projector,
		CtxLen:    r.ctxLenFor(req),
		GPULayers: r.gpuLayersFor(kind),
		Local:     true,
	}, nil
}

// resolveHF handles owner/repo/file references against the HuggingFace
// download endpoint. The file component is mandatory: the registry does
// not enumerate repository contents.
func (r *Registry) resolveHF(ctx context.Context, ref string, req manager.ResolveRequest) (manager.ModelSpec, error) {
	if req.Kind == "" {
		return manager.ModelSpec{}, manager.ErrValidation("model kind is required for HuggingFace references")
	}
	kind, err := manager.ParseKind(req.Kind)
	if err != nil {
		return manager.ModelSpec{}, manager.ErrValidation("%v", err)
	}
	parts := strings.SplitN(ref, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return manager.ModelSpec{}, manager.ErrValidation("HuggingFace reference must be owner/repo/file, got %q", ref)
	}
	url := fmt.Sprintf("%s/%s/%s/resolve/main/%s", r.hubURL, parts[0], parts[1], parts[2])
	path, err := r.ensureCached(ctx, ref, url, filepath.Join(parts...))
	if err != nil {
		return manager.ModelSpec{}, err
	}
	return manager.ModelSpec{
		ID:        ref,
		Kind:      kind,
		Path:      path,
		Projector: req.Projector,
		CtxLen:    r.ctxLenFor(req),
		GPULayers: r.gpuLayersFor(kind),
		Local:     true,
	}, nil
}

func (r *Registry) resolveCatalog(ctx context.Context, name string, req manager.ResolveRequest) (manager.ModelSpec, error) {
	e, ok := lookup(name)
	if !ok {
		return manager.ModelSpec{}, manager.ErrModelNotFound(name)
	}
	if req.Kind != "" {
		kind, err := manager.ParseKind(req.Kind)
		if err != nil {
			return manager.ModelSpec{}, manager.ErrValidation("%v", err)
		}
		if kind != e.kind {
			return manager.ModelSpec{}, manager.ErrValidation("%s is a %s model, not %s", name, e.kind, kind)
		}
	}
	path, err := r.ensureCached(ctx, name, r.hubURL+"/"+e.artifact, e.artifact)
	if err != nil {
		return manager.ModelSpec{}, err
	}
	projector := req.Projector
	if projector == "" && e.projector != "" {
		if projector, err = r.ensureCached(ctx, name, r.hubURL+"/"+e.projector, e.projector); err != nil {
			return manager.ModelSpec{}, err
		}
	}
	return manager.ModelSpec{
		ID:                 name,
		Kind:               e.kind,
		Path:               path,
		Projector:          projector,
		CtxLen:             r.ctxLenFor(req),
		GPULayers:          r.gpuLayersFor(e.kind),
		ChatFormat:         e.chatFormat,
		CompletionTemplate: e.completionTemplate,
	}, nil
}

func (r *Registry) ctxLenFor(req manager.ResolveRequest) int {
	if req.CtxLen > 0 {
		return req.CtxLen
	}
	return r.ctxLen
}

// gpuLayersFor pins audio and diffusion loads to the CPU; only the text
// runtimes honor the configured offload.
func (r *Registry) gpuLayersFor(kind manager.Kind) int {
	switch kind {
	case manager.KindText, manager.KindVisionLanguage:
		return r.gpuLayers
	default:
		return 0
	}
}

// List reports the catalog plus any extra artifacts sitting in the cache.
// Cached catalog entries carry their on-disk path and size.
func (r *Registry) List() []types.ModelCard {
	names := make([]string, 0, len(catalog))
	claimed := make(map[string]bool, len(catalog)*2)
	for name, e := range catalog {
		names = append(names, name)
		claimed[filepath.Join(r.cacheDir, filepath.FromSlash(e.artifact))] = true
		if e.projector != "" {
			claimed[filepath.Join(r.cacheDir, filepath.FromSlash(e.projector))] = true
		}
	}
	sort.Strings(names)

	cards := make([]types.ModelCard, 0, len(names))
	for _, name := range names {
		e := catalog[name]
		card := types.ModelCard{ID: name, Object: types.ObjectModel, Kind: e.kind.String()}
		path := filepath.Join(r.cacheDir, filepath.FromSlash(e.artifact))
		if st, err := os.Stat(path); err == nil {
			card.Path = path
			card.SizeBytes = st.Size()
		}
		cards = append(cards, card)
	}
	return append(cards, r.strayCards(claimed)...)
}

// strayCards lists cached model files that no catalog entry accounts for,
// typically HuggingFace pulls. IDs are cache-relative paths.
func (r *Registry) strayCards(claimed map[string]bool) []types.ModelCard {
	var cards []types.ModelCard
	filepath.WalkDir(r.cacheDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".gguf", ".bin":
		default:
			return nil
		}
		if claimed[path] {
			return nil
		}
		rel, err := filepath.Rel(r.cacheDir, path)
		if err != nil {
			return nil
		}
		card := types.ModelCard{ID: filepath.ToSlash(rel), Object: types.ObjectModel, Path: path}
		if st, statErr := os.Stat(path); statErr == nil {
			card.SizeBytes = st.Size()
		}
		cards = append(cards, card)
	})
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards
}
