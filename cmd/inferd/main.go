package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/registry"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "inferd:", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inferd: unknown log level %q\n", cfg.LogLevel)
		os.Exit(1)
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	reg, err := registry.New(registry.Config{
		Logger:    log,
		HubURL:    cfg.HubURL,
		CacheDir:  cfg.CacheDir,
		CtxLen:    cfg.CtxLen,
		GPULayers: cfg.GPULayers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("registry init failed")
	}

	svc := manager.New(manager.ServiceConfig{
		Logger:    log,
		Catalog:   reg,
		Engine:    cfg.Engine,
		ServerBin: cfg.ServerBin,
		LlavaLib:  cfg.LlavaLib,
		SDLib:     cfg.SDLib,
		OutputDir: cfg.OutputDir,
		Threads:   cfg.Threads,
		MaxQueue:  cfg.MaxQueue,
		MaxWait:   time.Duration(cfg.MaxWaitSec) * time.Second,
	})

	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetMaxUploadBytes(int64(cfg.MaxUploadMB) << 20)
	httpapi.SetReloadEnabled(cfg.Reload)
	if origins := splitCSV(cfg.CORSOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
			[]string{"*"})
	}

	// Resolve and load the startup model before binding, so a bad model
	// reference fails the process instead of serving 503s.
	if cfg.Model != "" {
		loadCtx, cancel := context.WithTimeout(baseCtx, 10*time.Minute)
		err := svc.Load(loadCtx, manager.ResolveRequest{
			Model:     cfg.Model,
			Kind:      cfg.ModelKind,
			LocalPath: cfg.LocalPath,
			HF:        cfg.HF,
			Projector: cfg.Projector,
			CtxLen:    cfg.CtxLen,
		})
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("model", cfg.Model).Msg("startup model load failed")
		}
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(svc)}
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.Model).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	baseCancel() // ends in-flight streams so Shutdown can drain
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown incomplete")
	}
	if err := svc.Close(); err != nil {
		log.Warn().Err(err).Msg("model close failed")
	}
}
