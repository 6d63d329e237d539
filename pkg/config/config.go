package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "LINEBRIDGE_"

// Platform-conventional variable names, accepted alongside the prefixed form.
const (
	envChannelSecret      = "LINE_CHANNEL_SECRET"
	envChannelAccessToken = "LINE_CHANNEL_ACCESS_TOKEN"
	envGatewayBaseURL     = "OPENCLAW_BASE_URL"
	envGatewayToken       = "OPENCLAW_GATEWAY_TOKEN"
)

const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 3000
	defaultGatewayBaseURL = "http://127.0.0.1:18789"
	defaultGatewayModel   = "google-antigravity/claude-opus-4-5-thinking"

	// The gateway fronts thinking models that can spend minutes reasoning
	// before the first byte of an answer, so the completion timeout sits far
	// above typical HTTP defaults and values below the floor are raised.
	defaultTimeoutSeconds = 90
	minTimeoutSeconds     = 60

	defaultMaxRetries = 1
)

// Config is the immutable runtime configuration. It is loaded once at startup
// from the environment and never mutated afterward; request handlers only
// ever read it.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Line    LineConfig    `koanf:"line"`
	Gateway GatewayConfig `koanf:"gateway"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the webhook HTTP listener.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LineConfig holds the messaging-platform credentials.
type LineConfig struct {
	ChannelSecret      string `koanf:"channel_secret"`
	ChannelAccessToken string `koanf:"channel_access_token"`
	APIBase            string `koanf:"api_base"`
}

// GatewayConfig configures the local AI gateway connection.
type GatewayConfig struct {
	BaseURL        string `koanf:"base_url"`
	Token          string `koanf:"token"`
	Model          string `koanf:"model"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	MaxRetries     int    `koanf:"max_retries"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `koanf:"format"`
	Level     string `koanf:"level"`
	AddSource bool   `koanf:"add_source"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present, then LINEBRIDGE_* variables, then
// the conventional LINE_* and OPENCLAW_* aliases.
func Load() (*Config, error) {
	// Optional; deployments without a .env file configure the process directly.
	_ = godotenv.Load()

	cfg := defaultConfig()

	k := koanf.New(".")
	provider := env.ProviderWithValue(envPrefix, ".", func(name, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			// Blank variables do not override defaults.
			return "", nil
		}
		return envKey(name), value
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("load environment config: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parse environment config: %w", err)
	}

	applyPlatformAliases(cfg)

	return cfg, nil
}

// envKey maps LINEBRIDGE_SECTION_FIELD_NAME to "section.field_name". Only the
// first underscore separates the section from the key, so field names may
// themselves contain underscores.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: defaultHost,
			Port: defaultPort,
		},
		Gateway: GatewayConfig{
			BaseURL:        defaultGatewayBaseURL,
			Model:          defaultGatewayModel,
			TimeoutSeconds: defaultTimeoutSeconds,
			MaxRetries:     defaultMaxRetries,
		},
	}
}

func applyPlatformAliases(cfg *Config) {
	if cfg.Line.ChannelSecret == "" {
		cfg.Line.ChannelSecret = strings.TrimSpace(os.Getenv(envChannelSecret))
	}
	if cfg.Line.ChannelAccessToken == "" {
		cfg.Line.ChannelAccessToken = strings.TrimSpace(os.Getenv(envChannelAccessToken))
	}
	// The gateway fields carry defaults, so the alias only applies when the
	// prefixed form is absent from the environment.
	if strings.TrimSpace(os.Getenv(envPrefix+"GATEWAY_BASE_URL")) == "" {
		if alias := strings.TrimSpace(os.Getenv(envGatewayBaseURL)); alias != "" {
			cfg.Gateway.BaseURL = alias
		}
	}
	if cfg.Gateway.Token == "" {
		cfg.Gateway.Token = strings.TrimSpace(os.Getenv(envGatewayToken))
	}
}

// Validate checks that the configuration can run the bridge.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Line.ChannelSecret) == "" {
		return errors.New("line.channel_secret is required (LINEBRIDGE_LINE_CHANNEL_SECRET or LINE_CHANNEL_SECRET)")
	}
	if strings.TrimSpace(c.Line.ChannelAccessToken) == "" {
		return errors.New("line.channel_access_token is required (LINEBRIDGE_LINE_CHANNEL_ACCESS_TOKEN or LINE_CHANNEL_ACCESS_TOKEN)")
	}
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		return errors.New("gateway.base_url is required")
	}
	if strings.TrimSpace(c.Gateway.Model) == "" {
		return errors.New("gateway.model is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("gateway.max_retries must be non-negative, got %d", c.Gateway.MaxRetries)
	}

	return nil
}

// Timeout returns the completion request timeout, clamped to the thinking
// model floor.
func (g GatewayConfig) Timeout() time.Duration {
	seconds := g.TimeoutSeconds
	if seconds <= 0 {
		seconds = defaultTimeoutSeconds
	}
	if seconds < minTimeoutSeconds {
		seconds = minTimeoutSeconds
	}

	return time.Duration(seconds) * time.Second
}
