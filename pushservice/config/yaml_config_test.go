package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-push-dispatch/pushservice/config"
)

const sampleYaml = `
project_id: yaml-project
listen_addr: ":9000"
push:
  provider: apns
  apns:
    key_id: K1
    team_id: T1
    bundle_id: com.example.app
    development: true
registry:
  backend: memory
redis:
  enabled: true
  addr: localhost:6379
  ttl: 30m
dispatch:
  max_concurrency: 5
  timeout: 8s
  send_timeout: 3s
cors:
  allowed_origins:
    - http://yaml.com
`

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal([]byte(sampleYaml), &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, config.ProviderAPNS, cfg.Push.Provider)
		assert.Equal(t, "K1", cfg.Push.APNS.KeyID)
		assert.Equal(t, "T1", cfg.Push.APNS.TeamID)
		assert.Equal(t, "com.example.app", cfg.Push.APNS.BundleID)
		assert.True(t, cfg.Push.APNS.Development)
		assert.Equal(t, config.BackendMemory, cfg.RegistryBackend)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 30*time.Minute, cfg.Redis.TTL)
		assert.Equal(t, 5, cfg.Dispatch.MaxConcurrency)
		assert.Equal(t, 8*time.Second, cfg.Dispatch.Timeout)
		assert.Equal(t, 3*time.Second, cfg.Dispatch.SendTimeout)
		assert.Equal(t, []string{"http://yaml.com"}, cfg.Cors.AllowedOrigins)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		cfg, err := config.NewConfigFromYaml(&config.YamlConfig{ProjectID: "minimal-project"}, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Zero(t, cfg.Dispatch.MaxConcurrency)
		assert.Zero(t, cfg.Dispatch.Timeout)
		assert.Empty(t, cfg.ListenAddr)
	})

	t.Run("Failure - Invalid duration", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{DispatchConfig: config.YamlDispatchConfig{Timeout: "ten seconds"}}
		_, err := config.NewConfigFromYaml(yamlCfg, logger)
		assert.Error(t, err)
	})
}
