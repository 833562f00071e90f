package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/aniload-go/api"
	"github.com/yourusername/aniload-go/internal/app"
	"github.com/yourusername/aniload-go/internal/domain"
	"github.com/yourusername/aniload-go/internal/infrastructure"
	"github.com/yourusername/aniload-go/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting aniload server",
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Int("concurrent_limit", config.Download.ConcurrentLimit))

	if err := createDirectories(config); err != nil {
		log.Fatal("Failed to create directories", zap.Error(err))
	}

	repo, err := infrastructure.NewSQLiteItemRepository(config.Queue.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open item store", zap.Error(err))
	}
	defer repo.Close()

	source := infrastructure.NewHTTPContentSource(&config.Source, config.Download.StallTimeout, log)
	gallery := infrastructure.NewMediaLibrary(config.Gallery.Root, log)
	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	downloadMgr := app.NewDownloadManager(repo, source, gallery, notifier,
		&config.Download, &config.Gallery, log)
	queueMgr := app.NewQueueManager(repo, downloadMgr, &config.Queue,
		config.Download.ConcurrentLimit, log)
	cacheMgr := app.NewCacheManager(&config.Cache, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := queueMgr.Start(ctx); err != nil {
		log.Fatal("Failed to start queue", zap.Error(err))
	}

	// Opportunistic housekeeping on startup; the API re-triggers it around
	// content sessions.
	go cacheMgr.SmartCleanup()

	router := api.SetupRouter(queueMgr, downloadMgr, cacheMgr, log)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server listening", zap.String("addr", server.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	cancel()
	if err := queueMgr.Stop(); err != nil {
		log.Warn("Queue stop", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	log.Info("Server stopped")
}

// createDirectories ensures the on-disk layout exists before anything runs
func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.BaseDir,
		config.Cache.Root,
		filepath.Dir(config.Queue.DatabasePath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
