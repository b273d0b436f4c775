package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected HTTP port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected 30s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("expected sqlite, got %q", cfg.Database.Type)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("expected memory cache, got %q", cfg.Cache.Backend)
	}
	if cfg.Agents.Focus.MaxTokens != 500 || cfg.Agents.Planning.MaxTokens != 800 {
		t.Errorf("unexpected agent token limits: %+v", cfg.Agents.Config)
	}
	if cfg.Agents.Limits.MaxPlanningIssues != 15 {
		t.Errorf("expected 15 planning issues, got %d", cfg.Agents.Limits.MaxPlanningIssues)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("TEST_COGLOAD_KEY", "sk-test")
	path := writeConfig(t, `
server:
  http_port: 9000
  write_timeout: 15s
database:
  type: postgres
  dsn: postgres://cog@localhost/cog?sslmode=disable
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
advisory:
  type: ollama
  model: llama3
  api_key: ${TEST_COGLOAD_KEY}
engine:
  timezone: America/Chicago
agents:
  timeout: 20s
  focus:
    temperature: 0.1
    max_tokens: 300
  limits:
    max_planning_issues: 5
    max_planning_prs: 2
scheduler:
  interval: 10m
security:
  enable_auth: true
  jwt_secret: s3cret
  allowed_origins: ["https://app.example.com"]
`)

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "sk-test", cfg.Advisory.APIKey)
	assert.Equal(t, "America/Chicago", cfg.Engine.Timezone)
	assert.Equal(t, 20*time.Second, cfg.Agents.Timeout)
	assert.Equal(t, 300, cfg.Agents.Focus.MaxTokens)
	assert.Equal(t, 800, cfg.Agents.Planning.MaxTokens)
	assert.Equal(t, 5, cfg.Agents.Limits.MaxPlanningIssues)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Security.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile_EmptySectionsGetDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 0
database:
  type: ""
github:
  repo_limit: 0
`)
	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./cogload.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.GitHub.RepoLimit)
}

func TestLoadConfigFromFile_Errors(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFromFile(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("COGLOAD_HTTP_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://x@db/cog")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://x@db/cog", cfg.Database.DSN)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "nats://nats:4222", cfg.Events.URL)
	assert.Equal(t, "from-env", cfg.Security.JWTSecret)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad timezone", func(c *Config) { c.Engine.Timezone = "Mars/Olympus" }},
		{"unknown database", func(c *Config) { c.Database.Type = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Type = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }},
		{"redis without url", func(c *Config) { c.Cache.Backend = "redis" }},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"unknown advisory", func(c *Config) { c.Advisory.Type = "bard" }},
		{"auth without secret", func(c *Config) { c.Security.EnableAuth = true }},
		{"scheduler too fast", func(c *Config) { c.Scheduler.Interval = time.Second }},
		{"negative caps", func(c *Config) { c.Agents.Limits.MaxPlanningPRs = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
