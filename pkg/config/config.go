package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jordanhubbard/cogload/internal/agents"
	"github.com/jordanhubbard/cogload/internal/cache"
	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/orchestrator"
	"github.com/jordanhubbard/cogload/internal/provider"
)

// Config represents the main configuration for the cogload server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     cache.Config    `yaml:"cache"`
	Advisory  provider.Config `yaml:"advisory"`
	Engine    EngineConfig    `yaml:"engine"`
	Agents    AgentsConfig    `yaml:"agents"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Events    events.Config   `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Security  SecurityConfig  `yaml:"security"`
	GitHub    GitHubConfig    `yaml:"github"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig configures the store
type DatabaseConfig struct {
	Type string `yaml:"type"` // "sqlite", "postgres"
	Path string `yaml:"path"` // For SQLite
	DSN  string `yaml:"dsn"`  // For Postgres
}

// EngineConfig configures the cognitive load engine
type EngineConfig struct {
	Timezone    string `yaml:"timezone"`     // IANA name for day boundaries; empty means local
	WeightsFile string `yaml:"weights_file"` // TOML weight profiles, hot-reloaded
}

// AgentsConfig tunes the advisory agents and the orchestrator's planning caps
type AgentsConfig struct {
	agents.Config `yaml:",inline"`
	Briefing      provider.Options    `yaml:"briefing"`
	Limits        orchestrator.Limits `yaml:"limits"`
}

// SchedulerConfig controls periodic orchestration runs
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Lookback time.Duration `yaml:"lookback"`
}

// TelemetryConfig configures OpenTelemetry export
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// SecurityConfig configures authentication and CORS
type SecurityConfig struct {
	EnableAuth     bool     `yaml:"enable_auth"`
	JWTSecret      string   `yaml:"jwt_secret"`
	JWTIssuer      string   `yaml:"jwt_issuer"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS
	DefaultUserID  string   `yaml:"default_user_id"` // used when auth is off and no X-User-ID is sent
}

// GitHubConfig configures sync through the gh CLI
type GitHubConfig struct {
	Enabled   bool   `yaml:"enabled"`
	GHPath    string `yaml:"gh_path"`
	Token     string `yaml:"token"`
	RepoLimit int    `yaml:"repo_limit"`
}

// LoadConfigFromFile loads configuration from a YAML file at the specified path.
// Values not present in the file keep their defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g. ${ADVISORY_API_KEY}) before parsing YAML
	expanded := os.ExpandEnv(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	config.applyDefaults()
	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./cogload.db",
		},
		Cache: *cache.DefaultConfig(),
		Advisory: provider.Config{
			Type:    "openai",
			Timeout: 30 * time.Second,
		},
		Agents: AgentsConfig{
			Config:   agents.DefaultConfig(),
			Briefing: provider.Options{Temperature: 0.3, MaxTokens: 1500},
			Limits:   orchestrator.DefaultLimits(),
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: 30 * time.Minute,
			Lookback: 7 * 24 * time.Hour,
		},
		Events: events.Config{
			StreamName:    "COGLOAD",
			SubjectPrefix: "cogload",
			Timeout:       10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "cogload",
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"*"},
		},
		GitHub: GitHubConfig{
			GHPath:    "gh",
			RepoLimit: 10,
		},
	}
}

// applyDefaults fills zero values an explicit empty section would leave behind
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = d.Server.HTTPPort
	}
	if c.Database.Type == "" {
		c.Database.Type = d.Database.Type
	}
	if c.Database.Type == "sqlite" && c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = d.Cache.DefaultTTL
	}
	if c.Agents.Timeout == 0 {
		c.Agents.Timeout = d.Agents.Timeout
	}
	if c.Agents.Limits.MaxPlanningIssues == 0 {
		c.Agents.Limits = d.Agents.Limits
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = d.Scheduler.Interval
	}
	if c.GitHub.RepoLimit == 0 {
		c.GitHub.RepoLimit = d.GitHub.RepoLimit
	}
}

// ApplyEnv lets deployment environment variables override file settings
func (c *Config) ApplyEnv() {
	if v := os.Getenv("COGLOAD_HTTP_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.Type = "postgres"
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Events.URL = v
	}
	if v := os.Getenv("ADVISORY_API_KEY"); v != "" {
		c.Advisory.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Security.JWTSecret = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("GH_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	if c.Engine.Timezone != "" {
		if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
			return fmt.Errorf("invalid engine.timezone: %w", err)
		}
	}
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	switch c.Advisory.Type {
	case "", "openai", "local", "custom", "azure", "ollama":
	default:
		return fmt.Errorf("unsupported advisory type %q", c.Advisory.Type)
	}
	if c.Security.EnableAuth && c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required when auth is enabled")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler.interval must be at least 1m, got %s", c.Scheduler.Interval)
	}
	if c.Agents.Limits.MaxPlanningIssues < 0 || c.Agents.Limits.MaxPlanningPRs < 0 {
		return fmt.Errorf("agents.limits caps must not be negative")
	}
	return nil
}
