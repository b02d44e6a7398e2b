// Package main runs the geodesic lobby server: guest token issuance, the
// WebSocket lobby, and the in-memory game service behind one HTTP listener.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/config"
	"github.com/geodesic-gg/lobby/internal/observability"
	"github.com/geodesic-gg/lobby/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file (empty for built-in defaults)")
	flag.Parse()

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting geodesic lobby server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("token_ttl", cfg.Auth.TokenTTL),
		zap.Int("room_capacity", cfg.Lobby.RoomCapacity),
	)

	app, err := server.NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("wiring application", zap.Error(err))
	}

	logger.Info("lobby initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := app.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
