package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"klendrisk/native/lending"
)

const (
	defaultListen      = ":8080"
	defaultServiceName = "riskd"
	defaultScope       = "snapshots:write"

	// SecretEnv overrides auth.hmac_secret so the key can stay out of the file.
	SecretEnv = "RISKD_JWT_SECRET"
)

// Config captures the runtime settings for the risk daemon.
type Config struct {
	Listen        string               `yaml:"listen"`
	GRPCListen    string               `yaml:"grpc_listen"`
	Environment   string               `yaml:"environment"`
	LogLevel      string               `yaml:"log_level"`
	ReadTimeout   time.Duration        `yaml:"read_timeout"`
	WriteTimeout  time.Duration        `yaml:"write_timeout"`
	IdleTimeout   time.Duration        `yaml:"idle_timeout"`
	Engine        lending.Config       `yaml:"engine"`
	Snapshots     []string             `yaml:"snapshots"`
	Storage       StorageConfig        `yaml:"storage"`
	Observability ObservabilityConfig  `yaml:"observability"`
	Auth          AuthConfig           `yaml:"auth"`
	RateLimits    map[string]RateLimit `yaml:"rate_limits"`
	CORS          CORSConfig           `yaml:"cors"`
}

// StorageConfig selects the persistence backend. An empty driver disables
// persistence.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ObservabilityConfig controls request metrics, logs and tracing.
type ObservabilityConfig struct {
	ServiceName   string `yaml:"service_name"`
	MetricsPrefix string `yaml:"metrics_prefix"`
	LogRequests   bool   `yaml:"log_requests"`
	Tracing       bool   `yaml:"tracing"`
	Metrics       bool   `yaml:"otel_metrics"`
}

// AuthConfig configures bearer token checks on snapshot uploads.
type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	HMACSecret string        `yaml:"hmac_secret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ScopeClaim string        `yaml:"scope_claim"`
	WriteScope string        `yaml:"write_scope"`
	ClockSkew  time.Duration `yaml:"clock_skew"`
}

// RateLimit bounds requests per client for a route group.
type RateLimit struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// CORSConfig lists browser origins allowed to query the daemon.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file overrides a field.
func Default() Config {
	return Config{
		Listen:       defaultListen,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		Engine:       lending.DefaultConfig(),
		Observability: ObservabilityConfig{
			ServiceName:   defaultServiceName,
			MetricsPrefix: "riskd",
		},
	}
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if secret, ok := os.LookupEnv(SecretEnv); ok && strings.TrimSpace(secret) != "" {
		cfg.Auth.HMACSecret = secret
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.Listen = strings.TrimSpace(cfg.Listen)
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	cfg.GRPCListen = strings.TrimSpace(cfg.GRPCListen)
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.Engine.EnsureDefaults()

	paths := make([]string, 0, len(cfg.Snapshots))
	for _, path := range cfg.Snapshots {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	cfg.Snapshots = paths

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Storage.DSN = strings.TrimSpace(cfg.Storage.DSN)

	cfg.Observability.ServiceName = strings.TrimSpace(cfg.Observability.ServiceName)
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = defaultServiceName
	}
	cfg.Observability.MetricsPrefix = strings.TrimSpace(cfg.Observability.MetricsPrefix)

	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	cfg.Auth.ScopeClaim = strings.TrimSpace(cfg.Auth.ScopeClaim)
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	cfg.Auth.WriteScope = strings.TrimSpace(cfg.Auth.WriteScope)
	if cfg.Auth.WriteScope == "" {
		cfg.Auth.WriteScope = defaultScope
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}

	origins := make([]string, 0, len(cfg.CORS.AllowedOrigins))
	for _, origin := range cfg.CORS.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.CORS.AllowedOrigins = origins
}

func (cfg *Config) validate() error {
	if err := cfg.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	switch cfg.Storage.Driver {
	case "":
	case "sqlite", "postgres":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage: dsn required for driver %s", cfg.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage: unsupported driver %q", cfg.Storage.Driver)
	}
	if cfg.Auth.Enabled && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("auth: hmac_secret (or %s) required when enabled", SecretEnv)
	}
	for _, name := range cfg.RateLimitNames() {
		limit := cfg.RateLimits[name]
		if limit.RequestsPerMinute <= 0 || limit.Burst <= 0 {
			return fmt.Errorf("rate_limits.%s: requests_per_minute and burst must be positive", name)
		}
	}
	return nil
}

// RateLimitNames returns the configured route groups in a stable order.
func (cfg Config) RateLimitNames() []string {
	names := make([]string, 0, len(cfg.RateLimits))
	for name := range cfg.RateLimits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
