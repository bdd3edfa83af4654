package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Feddakalkun/chess-platform/internal/adapter/rules"
	"github.com/Feddakalkun/chess-platform/internal/config"
	"github.com/Feddakalkun/chess-platform/internal/hub"
	internalhttp "github.com/Feddakalkun/chess-platform/internal/http"
	"github.com/Feddakalkun/chess-platform/internal/logging"
	"github.com/Feddakalkun/chess-platform/internal/policy"
	"github.com/Feddakalkun/chess-platform/internal/registry"
	"github.com/Feddakalkun/chess-platform/internal/service"
	"github.com/Feddakalkun/chess-platform/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting chess relay",
		zap.Int("port", cfg.Port),
		zap.Int("internal_port", cfg.InternalPort),
		zap.Duration("retention", cfg.Retention))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policyEngine, err := policy.Load(ctx, cfg.PolicyFile)
	if err != nil {
		logger.Fatal("failed to load session policy", zap.Error(err))
	}

	// Initialize hub
	connectionHub := hub.NewHub(logger)
	go connectionHub.Run(ctx)

	engine := rules.NewChessEngine()
	reg := registry.New(registry.NewMemoryStore(), engine, logger)
	go reg.RunReaper(ctx, cfg.ReapInterval, cfg.Retention)

	svc := service.New(reg, engine, policyEngine, connectionHub, logger)
	go svc.RunTimeoutMonitor(ctx, cfg.FlagSweepInterval)

	handler := internalhttp.NewHandler(svc, connectionHub)

	// Public server: websocket plus read-only game routes
	publicEcho := internalhttp.NewEcho(logger)
	publicEcho.GET("/ws", ws.NewServer(cfg, connectionHub, svc, logger).HandleWebSocket)
	handler.RegisterPublicRoutes(publicEcho)
	publicServer := internalhttp.NewServer(publicEcho)

	internalEcho := internalhttp.NewEcho(logger)
	handler.RegisterInternalRoutes(internalEcho)
	internalServer := internalhttp.NewServer(internalEcho)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := publicServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start public server", zap.Error(err))
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start internal server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down chess relay")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown public server gracefully", zap.Error(err))
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown internal server gracefully", zap.Error(err))
	}
	cancel()

	logger.Info("chess relay stopped")
}
