// Package config loads server configuration from defaults, an optional
// YAML file and the environment. Command-line flags are applied on top
// by the caller before Validate.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NERVsystems/navermapmcp/pkg/ncp"
)

// Environment variables read by ApplyEnv.
const (
	EnvClientID        = "NCP_CLIENT_ID"
	EnvClientSecret    = "NCP_CLIENT_SECRET"
	EnvBaseURL         = "NCP_BASE_URL"
	EnvDebug           = "DEBUG"
	EnvStaticDelivery  = "STATIC_MAP_DELIVERY"
	EnvStaticOutputDir = "STATIC_MAP_OUTPUT_DIR"
	EnvOTLPEndpoint    = "OTLP_ENDPOINT"
	EnvOTLPInsecure    = "OTLP_INSECURE"
	EnvSampleRatio     = "OTEL_TRACES_SAMPLER_RATIO"
	EnvEnvironment     = "ENVIRONMENT"
)

// Config is the complete server configuration.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Server     ServerConfig     `yaml:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	StaticMap  StaticMapConfig  `yaml:"static_map"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ProviderConfig holds the Naver Cloud Platform API settings.
type ProviderConfig struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the optional Streamable HTTP transport.
type HTTPConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Only      bool    `yaml:"only"` // skip stdio
	Addr      string  `yaml:"addr"`
	BaseURL   string  `yaml:"base_url"`
	AuthType  string  `yaml:"auth_type"` // none, bearer, basic
	AuthToken string  `yaml:"auth_token"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst int     `yaml:"rate_burst"`

	// TrustProxyHeaders keys the rate limiter on X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// MonitoringConfig configures the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StaticMapConfig configures static map delivery.
type StaticMapConfig struct {
	Delivery  string `yaml:"delivery"` // inline or file
	OutputDir string `yaml:"output_dir"`
}

// TracingConfig configures OpenTelemetry export. An empty Endpoint
// disables export.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"` // OTLP gRPC host:port
	Insecure    bool    `yaml:"insecure"` // plaintext gRPC instead of TLS
	SampleRatio float64 `yaml:"sample_ratio"`
	Environment string  `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Debug  bool   `yaml:"debug"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL: ncp.DefaultBaseURL,
			Timeout: ncp.DefaultTimeout,
		},
		Server: ServerConfig{
			HTTP: HTTPConfig{
				Addr:      ":7082",
				AuthType:  "none",
				RateBurst: 20,
			},
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		StaticMap: StaticMapConfig{
			Delivery: "inline",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Insecure:    true,
			SampleRatio: 1,
			Environment: "development",
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (if
// path is non-empty) and the process environment. ${VAR} references in
// the file are expanded before parsing. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.parseYAML(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parseYAML(data []byte) error {
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvClientID); ok && v != "" {
		c.Provider.ClientID = v
	}
	if v, ok := lookup(EnvClientSecret); ok && v != "" {
		c.Provider.ClientSecret = v
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.Provider.BaseURL = v
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", EnvDebug, v)
		}
		c.Logging.Debug = debug
	}
	if v, ok := lookup(EnvStaticDelivery); ok && v != "" {
		c.StaticMap.Delivery = v
	}
	if v, ok := lookup(EnvStaticOutputDir); ok && v != "" {
		c.StaticMap.OutputDir = v
	}
	if v, ok := lookup(EnvOTLPEndpoint); ok && v != "" {
		c.Tracing.Endpoint = v
	}
	if v, ok := lookup(EnvOTLPInsecure); ok && v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", EnvOTLPInsecure, v)
		}
		c.Tracing.Insecure = insecure
	}
	if v, ok := lookup(EnvSampleRatio); ok && v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", EnvSampleRatio, v)
		}
		c.Tracing.SampleRatio = ratio
	}
	if v, ok := lookup(EnvEnvironment); ok && v != "" {
		c.Tracing.Environment = v
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if err := c.Credentials().Validate(); err != nil {
		return err
	}

	u, err := url.Parse(c.Provider.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("provider.base_url is not a valid URL: %q", c.Provider.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.base_url must use http or https scheme")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}

	h := c.Server.HTTP
	if h.Only && !h.Enabled {
		return fmt.Errorf("server.http.only requires server.http.enabled")
	}
	if h.Enabled && h.Addr == "" {
		return fmt.Errorf("server.http.addr is required when the HTTP transport is enabled")
	}
	switch h.AuthType {
	case "", "none":
	case "bearer", "basic":
		if h.AuthToken == "" {
			return fmt.Errorf("server.http.auth_token is required for %s auth", h.AuthType)
		}
	default:
		return fmt.Errorf("server.http.auth_type must be none, bearer or basic, got %q", h.AuthType)
	}
	if h.RateLimit < 0 || h.RateBurst < 0 {
		return fmt.Errorf("server.http.rate_limit and rate_burst must not be negative")
	}
	if h.RateLimit > 0 && h.RateBurst == 0 {
		return fmt.Errorf("server.http.rate_burst must be at least 1 when rate_limit is set")
	}

	if c.Monitoring.Enabled && c.Monitoring.Addr == "" {
		return fmt.Errorf("monitoring.addr is required when monitoring is enabled")
	}

	switch strings.ToLower(c.StaticMap.Delivery) {
	case "", "inline", "file":
	default:
		return fmt.Errorf("static_map.delivery must be inline or file, got %q", c.StaticMap.Delivery)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}

	if r := c.Tracing.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", r)
	}

	return nil
}

// Credentials returns the provider key pair.
func (c *Config) Credentials() ncp.Credentials {
	return ncp.Credentials{
		KeyID: c.Provider.ClientID,
		Key:   c.Provider.ClientSecret,
	}
}

// LogLevel returns the configured level. Debug overrides Level.
func (c *Config) LogLevel() slog.Level {
	if c.Logging.Debug {
		return slog.LevelDebug
	}
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Provider.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Provider.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing provider.timeout %q: %w", cfg.Provider.TimeoutRaw, err)
		}
		cfg.Provider.Timeout = d
	}
	return nil
}
