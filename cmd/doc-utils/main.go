package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/pavel-fokin/doc-utils/internal/documents"
	"github.com/pavel-fokin/doc-utils/internal/fs"
	"github.com/pavel-fokin/doc-utils/internal/minio"
	"github.com/pavel-fokin/doc-utils/internal/ocr"
	"github.com/pavel-fokin/doc-utils/internal/pdf"
	"github.com/pavel-fokin/doc-utils/internal/server"
	"github.com/pavel-fokin/doc-utils/internal/sqlite"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg := server.Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := fs.NewStorage(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}

	repo, err := sqlite.NewRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to initialize repository: %v", err)
	}
	defer repo.Close()

	opts := []documents.Option{
		documents.WithTTL(cfg.TTL),
		documents.WithSplitWorkers(cfg.SplitWorkers),
	}
	if cfg.MinIO.Enabled() {
		mirror, err := minio.New(ctx, cfg.MinIO)
		if err != nil {
			log.Fatalf("failed to initialize mirror: %v", err)
		}
		opts = append(opts, documents.WithMirror(mirror))
	}

	svc := documents.NewService(storage, repo, ocr.NewTesseract(cfg.OCRLanguage), pdf.NewEngine(), opts...)
	srv := server.New(&cfg, svc)

	go svc.RunSweeper(ctx, cfg.SweepInterval)

	go func() {
		slog.Info("Starting server", "addr", cfg.Addr, "data_dir", storage.Root())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
