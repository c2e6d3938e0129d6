package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"docchat-be/internal/bootstrap"
	"docchat-be/internal/config"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/server"
	"docchat-be/internal/tracer"
	"docchat-be/pkg/database"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(ctx, cfg.App, sysLogger)

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, gormDB, cfg, sysLogger)
	if err != nil {
		log.Panicf("Unable to bootstrap container: %v", err)
	}

	// 5. Start Background Services
	container.Start(context.Background())

	// 6. Run Server
	srv := server.New(cfg, container)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		sysLogger.Info("SERVER", "Shutdown signal received", nil)
	case err := <-serverErr:
		if err != nil {
			sysLogger.Error("SERVER", "Server stopped", map[string]interface{}{"error": err.Error()})
		}
	}

	timeout := cfg.App.ShutdownTimeout
	if err := srv.Shutdown(timeout); err != nil {
		sysLogger.Error("SERVER", "HTTP shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := container.Shutdown(timeout); err != nil {
		sysLogger.Error("SERVER", "Background shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdownTracer(flushCtx); err != nil {
		sysLogger.Warn("SERVER", "Tracer shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := database.Close(gormDB); err != nil {
		sysLogger.Warn("SERVER", "Database close failed", map[string]interface{}{"error": err.Error()})
	}

	sysLogger.Info("SERVER", "Shutdown complete", nil)
	_ = sysLogger.Sync()
}
