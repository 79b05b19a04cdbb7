package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/assetinventory/internal/config"
	"github.com/JonMunkholm/assetinventory/internal/files"
	"github.com/JonMunkholm/assetinventory/internal/importer"
	"github.com/JonMunkholm/assetinventory/internal/inventory"
	"github.com/JonMunkholm/assetinventory/internal/logging"
	"github.com/JonMunkholm/assetinventory/internal/store"
	"github.com/JonMunkholm/assetinventory/internal/store/memory"
	"github.com/JonMunkholm/assetinventory/internal/store/postgres"
	"github.com/JonMunkholm/assetinventory/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_backend", cfg.Database.Backend,
		"import_batch_size", cfg.Import.BatchSize,
		"import_batch_delay", cfg.Import.BatchDelay,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"attachments_enabled", cfg.Storage.Enabled(),
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Database.Backend, "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	inv, err := inventory.NewService(inventory.New(backend))
	if err != nil {
		slog.Error("failed to create inventory service", "error", err)
		os.Exit(1)
	}

	imports, err := importer.NewService(inv.Inventory().Assets, importer.ServiceConfig{
		BatchSize:     cfg.Import.BatchSize,
		BatchDelay:    cfg.Import.BatchDelay,
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
		Retention:     cfg.Import.ResultRetention,
	}, importer.NewMetrics())
	if err != nil {
		slog.Error("failed to create import service", "error", err)
		os.Exit(1)
	}

	var attachments *files.AttachmentService
	if cfg.Storage.Enabled() {
		objects, err := files.NewS3Storage(ctx, files.Options{
			Bucket:       cfg.Storage.Bucket,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.UsePathStyle,
			PresignTTL:   cfg.Storage.PresignTTL,
		})
		if err != nil {
			slog.Error("failed to configure attachment storage", "error", err)
			os.Exit(1)
		}
		attachments = files.NewAttachmentService(inv.Inventory(), objects, files.DefaultMaxAttachmentSize, cfg.Storage.PresignTTL)
		slog.Info("attachment storage configured", "bucket", cfg.Storage.Bucket, "region", cfg.Storage.Region)
	}

	server := web.NewServer(cfg, imports, inv, attachments)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running imports finish their current batches; cancel the rest.
		if status := imports.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := imports.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time, cancelling", "error", err)
				imports.CancelAll()
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// openBackend returns the configured entity store and its release func.
func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, func(), error) {
	if cfg.Database.Backend == config.BackendMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	backend := postgres.New(pool)
	if err := backend.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return backend, pool.Close, nil
}
