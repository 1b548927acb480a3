package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/network"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/server"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/config"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/logging"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	// The environment is read exactly once, here. Everything downstream
	// works from the resulting Config.
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Composer REST server",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("network", cfg.Connection.BusinessNetworkIdentifier),
	)

	// The in-process connector serves local development; the configured
	// network is deployed into it so the bootstrap can resolve it.
	connector := network.NewMemoryConnector()
	connector.Deploy(network.Definition{
		Identifier:  cfg.Connection.BusinessNetworkIdentifier,
		Version:     version,
		Description: "locally deployed business network",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := server.Bootstrap(ctx, cfg, connector, server.WithLogger(logger))
	cancel()
	if err != nil {
		logger.Fatal("Failed to bootstrap REST server", zap.Error(err))
	}

	go func() {
		var serveErr error
		if cfg.Server.TLS {
			// Certificates were already loaded into the listener's TLS config.
			serveErr = result.Listener.ListenAndServeTLS("", "")
		} else {
			serveErr = result.Listener.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatal("Listener failed", zap.Error(serveErr))
		}
	}()

	logger.Info("Listening", zap.String("address", result.Listener.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := result.Close(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
