package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/karimzahran/agora/internal/auth"
	"github.com/karimzahran/agora/internal/guard"
	"github.com/karimzahran/agora/internal/identity"
	"github.com/karimzahran/agora/internal/server"
	"github.com/karimzahran/agora/pkg/config"
	"github.com/karimzahran/agora/pkg/logging"
)

func main() {
	bootLogger := logging.New(logging.LevelInfo)

	cfg, err := config.Load(bootLogger, "config")
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	identityStore, err := buildIdentityStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize identity store", slog.Any("error", err))
		os.Exit(1)
	}
	guardStore, err := buildGuardStore(cfg)
	if err != nil {
		logger.Error("Failed to initialize guard store", slog.Any("error", err))
		os.Exit(1)
	}

	authenticator := auth.New(
		auth.NewHMACVerifier(cfg.Server.Auth.JWTSecret),
		identityStore,
		cfg.Server.Auth.HandshakeTimeout,
		logger,
	)

	app := server.NewApp(logger, ctx, cfg, server.Deps{
		Authenticator: authenticator,
		GuardStore:    guardStore,
	})
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

func buildIdentityStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (identity.Store, error) {
	if cfg.Identity.Store == "postgres" {
		return identity.NewPGStore(ctx, cfg.Identity.DatabaseURL)
	}
	logger.Warn("Using in-memory identity store; only suitable for development")
	return identity.NewMemStore(), nil
}

func buildGuardStore(cfg *config.Config) (guard.Store, error) {
	if cfg.Guard.Store == "redis" {
		return guard.NewRedisStore(cfg.Guard.RedisURL)
	}
	return guard.NewMemStore(), nil
}
