package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/auth"
	"github.com/KevinKickass/GiraIoTCore/internal/config"
	"github.com/KevinKickass/GiraIoTCore/internal/metrics"
	"github.com/KevinKickass/GiraIoTCore/internal/system"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	issueToken := flag.String("issue-token", "", "print a control API token for the given subject and exit")
	tokenPerms := flag.String("token-perms", "read,control", "comma separated permissions for -issue-token")
	tokenTTL := flag.Duration("token-ttl", 0, "lifetime of the issued token, 0 for no expiry")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *issueToken != "" {
		if err := printToken(cfg, *issueToken, *tokenPerms, *tokenTTL); err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		return
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}

	logger.Info("Config loaded successfully", zap.String("path", *configPath))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	session, err := system.Initialize(ctx, cfg, logger, system.WithMetrics(metrics.New()))
	cancel()
	if err != nil {
		logger.Fatal("Failed to start session", zap.Error(err))
	}

	logger.Info("GiraIoTCore started successfully", zap.String("session_id", session.ID().String()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := session.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("GiraIoTCore stopped successfully")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func printToken(cfg *config.Config, subject, perms string, ttl time.Duration) error {
	handler := auth.NewJWTHandler(cfg.Auth.GetJWTSecret())
	if !handler.Enabled() {
		return fmt.Errorf("no JWT secret in $%s", cfg.Auth.JWTSecretEnv)
	}

	var permissions []auth.Permission
	for _, p := range strings.Split(perms, ",") {
		switch perm := auth.Permission(strings.TrimSpace(p)); perm {
		case auth.PermRead, auth.PermControl:
			permissions = append(permissions, perm)
		default:
			return fmt.Errorf("unknown permission %q", p)
		}
	}

	token, err := handler.GenerateToken(subject, permissions, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
