package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderFCM  = "fcm"
	ProviderAPNS = "apns"

	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

const (
	defaultListenAddr     = ":8080"
	defaultMaxConcurrency = 4
	defaultTimeout        = 10 * time.Second
	defaultSendTimeout    = 5 * time.Second
	defaultRedisTTL       = 24 * time.Hour
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// FirebaseConfig holds the service-account fields used to sign in to FCM.
type FirebaseConfig struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

type APNSConfig struct {
	KeyID       string
	TeamID      string
	BundleID    string
	P8Key       string
	Development bool
}

type PushConfig struct {
	Provider string
	Firebase FirebaseConfig
	APNS     APNSConfig
}

type DispatchConfig struct {
	MaxConcurrency int
	Timeout        time.Duration
	SendTimeout    time.Duration
}

type CorsConfig struct {
	AllowedOrigins []string
}

// Config defines the *single*, authoritative configuration.
//
// SharedSecret and the provider credentials may legitimately be empty here:
// they are checked per request and reported to the caller as a server
// misconfiguration rather than stopping the process.
type Config struct {
	ProjectID       string
	ListenAddr      string
	SharedSecret    string
	RegistryBackend string

	Push     PushConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
	Cors     CorsConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	overrideString("PROJECT_ID", &cfg.ProjectID, logger)
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	overrideString("MC_SENDPUSH_TOKEN", &cfg.SharedSecret, logger)
	overrideString("REGISTRY_BACKEND", &cfg.RegistryBackend, logger)

	// Push provider
	overrideString("PUSH_PROVIDER", &cfg.Push.Provider, logger)
	overrideString("FIREBASE_PROJECT_ID", &cfg.Push.Firebase.ProjectID, logger)
	overrideString("FIREBASE_CLIENT_EMAIL", &cfg.Push.Firebase.ClientEmail, logger)
	overrideString("FIREBASE_PRIVATE_KEY", &cfg.Push.Firebase.PrivateKey, logger)
	overrideString("APNS_KEY_ID", &cfg.Push.APNS.KeyID, logger)
	overrideString("APNS_TEAM_ID", &cfg.Push.APNS.TeamID, logger)
	overrideString("APNS_BUNDLE_ID", &cfg.Push.APNS.BundleID, logger)
	overrideString("APNS_P8_KEY", &cfg.Push.APNS.P8Key, logger)
	if val := os.Getenv("APNS_DEVELOPMENT"); val != "" {
		cfg.Push.APNS.Development, _ = strconv.ParseBool(val)
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}
	if err := overrideDuration("REDIS_TTL", &cfg.Redis.TTL, logger); err != nil {
		return nil, err
	}

	// Dispatch Overrides
	if val := os.Getenv("DISPATCH_MAX_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			logger.Debug("Overriding config value", "key", "DISPATCH_MAX_CONCURRENCY", "source", "env")
			cfg.Dispatch.MaxConcurrency = n
		}
	}
	if err := overrideDuration("DISPATCH_TIMEOUT", &cfg.Dispatch.Timeout, logger); err != nil {
		return nil, err
	}
	if err := overrideDuration("DISPATCH_SEND_TIMEOUT", &cfg.Dispatch.SendTimeout, logger); err != nil {
		return nil, err
	}

	// CORS Overrides. ALLOWED_ORIGIN is the older single-origin form.
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		cfg.Cors.AllowedOrigins = splitList(corsOrigins)
	} else if origin := strings.TrimSpace(os.Getenv("ALLOWED_ORIGIN")); origin != "" {
		logger.Debug("Overriding config value", "key", "ALLOWED_ORIGIN", "source", "env")
		cfg.Cors.AllowedOrigins = []string{origin}
	}

	// 2. Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.Push.Provider = strings.ToLower(strings.TrimSpace(cfg.Push.Provider))
	if cfg.Push.Provider == "" {
		cfg.Push.Provider = ProviderFCM
	}
	cfg.RegistryBackend = strings.ToLower(strings.TrimSpace(cfg.RegistryBackend))
	if cfg.RegistryBackend == "" {
		cfg.RegistryBackend = BackendFirestore
	}
	if cfg.Dispatch.MaxConcurrency <= 0 {
		cfg.Dispatch.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.Dispatch.Timeout <= 0 {
		cfg.Dispatch.Timeout = defaultTimeout
	}
	if cfg.Dispatch.SendTimeout <= 0 {
		cfg.Dispatch.SendTimeout = defaultSendTimeout
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = defaultRedisTTL
	}
	if len(cfg.Cors.AllowedOrigins) == 0 {
		cfg.Cors.AllowedOrigins = []string{"*"}
	}

	// 3. Final Validation
	switch cfg.Push.Provider {
	case ProviderFCM, ProviderAPNS:
	default:
		return nil, fmt.Errorf("push.provider must be %q or %q, got %q", ProviderFCM, ProviderAPNS, cfg.Push.Provider)
	}
	switch cfg.RegistryBackend {
	case BackendFirestore:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("project_id is required for the firestore registry (set via YAML or PROJECT_ID env var)")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("registry.backend must be %q or %q, got %q", BackendFirestore, BackendMemory, cfg.RegistryBackend)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis is enabled but no address is set (redis.addr or REDIS_ADDR)")
	}

	if cfg.SharedSecret == "" {
		logger.Warn("MC_SENDPUSH_TOKEN is not set; every dispatch request will be rejected as misconfigured")
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func overrideString(key string, dst *string, logger *slog.Logger) {
	if val := os.Getenv(key); val != "" {
		logger.Debug("Overriding config value", "key", key, "source", "env")
		*dst = val
	}
}

func overrideDuration(key string, dst *time.Duration, logger *slog.Logger) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	logger.Debug("Overriding config value", "key", key, "source", "env")
	*dst = d
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
