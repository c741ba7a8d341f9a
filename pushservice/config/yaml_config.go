package config

import (
	"fmt"
	"log/slog"
	"time"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
	TTL      string `yaml:"ttl"`
}

type YamlAPNSConfig struct {
	KeyID       string `yaml:"key_id"`
	TeamID      string `yaml:"team_id"`
	BundleID    string `yaml:"bundle_id"`
	Development bool   `yaml:"development"`
}

type YamlPushConfig struct {
	Provider string         `yaml:"provider"`
	APNS     YamlAPNSConfig `yaml:"apns"`
}

type YamlRegistryConfig struct {
	Backend string `yaml:"backend"`
}

type YamlDispatchConfig struct {
	MaxConcurrency int    `yaml:"max_concurrency"`
	Timeout        string `yaml:"timeout"`
	SendTimeout    string `yaml:"send_timeout"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
// Credentials are deliberately absent; they only come from the environment.
type YamlConfig struct {
	ProjectID      string             `yaml:"project_id"`
	ListenAddr     string             `yaml:"listen_addr"`
	SharedSecret   string             `yaml:"shared_secret"`
	PushConfig     YamlPushConfig     `yaml:"push"`
	RegistryConfig YamlRegistryConfig `yaml:"registry"`
	RedisConfig    YamlRedisConfig    `yaml:"redis"`
	DispatchConfig YamlDispatchConfig `yaml:"dispatch"`
	CorsConfig     YamlCorsConfig     `yaml:"cors"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	timeout, err := parseDuration("dispatch.timeout", baseCfg.DispatchConfig.Timeout)
	if err != nil {
		return nil, err
	}
	sendTimeout, err := parseDuration("dispatch.send_timeout", baseCfg.DispatchConfig.SendTimeout)
	if err != nil {
		return nil, err
	}
	redisTTL, err := parseDuration("redis.ttl", baseCfg.RedisConfig.TTL)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ProjectID:       baseCfg.ProjectID,
		ListenAddr:      baseCfg.ListenAddr,
		SharedSecret:    baseCfg.SharedSecret,
		RegistryBackend: baseCfg.RegistryConfig.Backend,
		Push: PushConfig{
			Provider: baseCfg.PushConfig.Provider,
			APNS: APNSConfig{
				KeyID:       baseCfg.PushConfig.APNS.KeyID,
				TeamID:      baseCfg.PushConfig.APNS.TeamID,
				BundleID:    baseCfg.PushConfig.APNS.BundleID,
				Development: baseCfg.PushConfig.APNS.Development,
			},
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      redisTTL,
		},
		Dispatch: DispatchConfig{
			MaxConcurrency: baseCfg.DispatchConfig.MaxConcurrency,
			Timeout:        timeout,
			SendTimeout:    sendTimeout,
		},
		Cors: CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
		},
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"push_provider", cfg.Push.Provider,
		"registry_backend", cfg.RegistryBackend,
	)

	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
