// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/application/container"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/identity"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/database"
	"github.com/badalhalder99/newVital-sub000/internal/presentation/http/server"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence: logging, storage, the
// tracking engine, the collector API, and the HTTP server, then blocks until
// shutdown.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("Initializing newVital tracking engine...")

	// Step 1: Channeled logger
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Startup().Info("Channeled logging initialized")

	// Step 2: Database connection
	dbStart := time.Now()
	db, err := database.NewConnectionFromURL(config.StoreDatabaseURL, config.StoreAuthToken, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.LogStartupPhase("database", time.Since(dbStart), true)

	// Step 3: Dependency injection container
	containerStart := time.Now()
	appContainer, err := container.NewContainer(logger, db, hostEnvironment())
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	logger.LogStartupPhase("container", time.Since(containerStart), true)

	// Step 4: Start the tracking engine and the replay broadcaster
	engineStart := time.Now()
	if err := appContainer.Tracker.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracker: %w", err)
	}
	go appContainer.Broadcaster.Run(ctx)
	logger.LogStartupPhase("engine", time.Since(engineStart), true)

	// Step 5: HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Stop collecting and flush background work
	appContainer.Tracker.Dispose()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if err := db.Close(); err != nil {
		logger.Shutdown().Error("Error closing database", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// hostEnvironment builds the environment snapshot that seeds this
// embedding's fingerprint. Headless embeddings have no real screen, so the
// defaults are stable values that keep the fingerprint deterministic.
func hostEnvironment() identity.EnvironmentSnapshot {
	zone, _ := time.Now().Zone()
	return identity.EnvironmentSnapshot{
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		ColorDepth:   24,
		Timezone:     zone,
		Language:     os.Getenv("LANG"),
		Platform:     runtime.GOOS,
		UserAgent:    config.CollectorUserAgent,
	}
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
