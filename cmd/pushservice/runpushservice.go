package main

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-push-dispatch/internal/platform/apns"
	"github.com/tinywideclouds/go-push-dispatch/internal/platform/fcm"
	"github.com/tinywideclouds/go-push-dispatch/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-push-dispatch/internal/storage/firestore"
	"github.com/tinywideclouds/go-push-dispatch/internal/storage/memory"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch/pushservice"
	"github.com/tinywideclouds/go-push-dispatch/pushservice/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-push-dispatch")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Device Registry (Decorated) ---
	registry, closeRegistry, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Error("Device registry failed", "err", err)
		os.Exit(1)
	}
	defer closeRegistry()

	// --- Push Provider ---
	// Credentials are checked on first use so a misconfigured deployment
	// still starts and answers every dispatch with a ConfigError.
	provider := newProvider(cfg, logger)
	logger.Info("Push provider selected", "provider", cfg.Push.Provider)

	// --- Service ---
	service, err := pushservice.New(cfg, provider, registry, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "err", err)
		}
	}
}

func newRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dispatch.DeviceRegistry, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var registry dispatch.DeviceRegistry
	switch cfg.RegistryBackend {
	case config.BackendMemory:
		registry = memory.NewRegistry()
		logger.Warn("DeviceRegistry is in-memory; registrations are lost on restart")
	default:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { _ = fsClient.Close() })
		registry = fsStore.NewTokenRegistry(fsClient)
		logger.Info("DeviceRegistry initialized", "type", "firestore")
	}

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		registry = cache.NewCachedRegistry(registry, redisClient, cfg.Redis.TTL, logger)
		logger.Info("DeviceRegistry upgraded", "type", "redis_cached_"+cfg.RegistryBackend)
	}

	return registry, closeAll, nil
}

func newProvider(cfg *config.Config, logger *slog.Logger) dispatch.PushProvider {
	if cfg.Push.Provider == config.ProviderAPNS {
		return apns.NewProvider(apns.Config{
			KeyID:        cfg.Push.APNS.KeyID,
			TeamID:       cfg.Push.APNS.TeamID,
			BundleID:     cfg.Push.APNS.BundleID,
			P8KeyContent: cfg.Push.APNS.P8Key,
			Development:  cfg.Push.APNS.Development,
		}, logger)
	}
	return fcm.NewProvider(fcm.Credentials{
		ProjectID:   cfg.Push.Firebase.ProjectID,
		ClientEmail: cfg.Push.Firebase.ClientEmail,
		PrivateKey:  cfg.Push.Firebase.PrivateKey,
	}, fcm.NewFirebaseClient, logger)
}
