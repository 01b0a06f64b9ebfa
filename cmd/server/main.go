package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/zenview/internal/api"
	"github.com/dgallion1/zenview/internal/catalog"
	"github.com/dgallion1/zenview/internal/config"
	"github.com/dgallion1/zenview/internal/pipeline"
	"github.com/dgallion1/zenview/internal/prefs"
	"github.com/dgallion1/zenview/internal/source"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		log.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	store, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		log.Error("failed to open preferences", "path", cfg.PrefsPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize pipeline.
	loader := source.NewLoader(
		source.WithRoot(cfg.DataDir),
		source.WithFetcher(source.NewFetcher(cfg.FetchTimeout)),
		source.WithPDFFallback(cfg.PDFFallbackPdftotext),
	)
	orch := pipeline.NewOrchestrator(cfg, loader, log)
	orch.Start(ctx)
	if err := orch.Preload(cat); err != nil {
		log.Warn("preload incomplete", "error", err)
	}

	// Initialize HTTP server.
	srv := api.NewServer(orch, cat, store, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting zenview",
		"port", cfg.Port,
		"documents", len(cat.Documents),
		"data_dir", cfg.DataDir,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.Load(cfg.CatalogPath)
	}
	return catalog.Scan(cfg.DataDir)
}
