package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearBridgeEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Fatalf("server.port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Gateway.BaseURL != "http://127.0.0.1:18789" {
		t.Fatalf("gateway.base_url = %q, want default", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.MaxRetries != 1 {
		t.Fatalf("gateway.max_retries = %d, want 1", cfg.Gateway.MaxRetries)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("LINEBRIDGE_SERVER_PORT", "8080")
	t.Setenv("LINEBRIDGE_LINE_CHANNEL_SECRET", "secret")
	t.Setenv("LINEBRIDGE_LINE_CHANNEL_ACCESS_TOKEN", "token")
	t.Setenv("LINEBRIDGE_GATEWAY_BASE_URL", "http://127.0.0.1:9999")
	t.Setenv("LINEBRIDGE_GATEWAY_TIMEOUT_SECONDS", "120")
	t.Setenv("LINEBRIDGE_LOGGING_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Line.ChannelSecret != "secret" {
		t.Fatalf("line.channel_secret = %q, want %q", cfg.Line.ChannelSecret, "secret")
	}
	if cfg.Gateway.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("gateway.base_url = %q, want override", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.TimeoutSeconds != 120 {
		t.Fatalf("gateway.timeout_seconds = %d, want 120", cfg.Gateway.TimeoutSeconds)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want json", cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestLoadPlatformAliases(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("LINE_CHANNEL_SECRET", "alias-secret")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "alias-token")
	t.Setenv("OPENCLAW_BASE_URL", "http://127.0.0.1:4444")
	t.Setenv("OPENCLAW_GATEWAY_TOKEN", "alias-gateway-token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Line.ChannelSecret != "alias-secret" {
		t.Fatalf("line.channel_secret = %q, want alias value", cfg.Line.ChannelSecret)
	}
	if cfg.Line.ChannelAccessToken != "alias-token" {
		t.Fatalf("line.channel_access_token = %q, want alias value", cfg.Line.ChannelAccessToken)
	}
	if cfg.Gateway.BaseURL != "http://127.0.0.1:4444" {
		t.Fatalf("gateway.base_url = %q, want alias value", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.Token != "alias-gateway-token" {
		t.Fatalf("gateway.token = %q, want alias value", cfg.Gateway.Token)
	}
}

func TestPrefixedFormWinsOverAlias(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("LINEBRIDGE_LINE_CHANNEL_SECRET", "prefixed")
	t.Setenv("LINE_CHANNEL_SECRET", "alias")
	t.Setenv("LINEBRIDGE_GATEWAY_BASE_URL", "http://127.0.0.1:7777")
	t.Setenv("OPENCLAW_BASE_URL", "http://127.0.0.1:4444")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Line.ChannelSecret != "prefixed" {
		t.Fatalf("line.channel_secret = %q, want prefixed form", cfg.Line.ChannelSecret)
	}
	if cfg.Gateway.BaseURL != "http://127.0.0.1:7777" {
		t.Fatalf("gateway.base_url = %q, want prefixed form", cfg.Gateway.BaseURL)
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	cfg := defaultConfig()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error without channel secret")
	}
	if !strings.Contains(err.Error(), "channel_secret") {
		t.Fatalf("error = %v, want channel_secret mention", err)
	}

	cfg.Line.ChannelSecret = "secret"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without channel access token")
	}

	cfg.Line.ChannelAccessToken = "token"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestGatewayTimeoutFloor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		seconds int
		want    time.Duration
	}{
		{0, 90 * time.Second},
		{-5, 90 * time.Second},
		{10, 60 * time.Second},
		{60, 60 * time.Second},
		{300, 300 * time.Second},
	}

	for _, tc := range cases {
		got := GatewayConfig{TimeoutSeconds: tc.seconds}.Timeout()
		if got != tc.want {
			t.Fatalf("Timeout(%d) = %v, want %v", tc.seconds, got, tc.want)
		}
	}
}

func TestEnvKeyMapping(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"LINEBRIDGE_SERVER_PORT":             "server.port",
		"LINEBRIDGE_GATEWAY_BASE_URL":        "gateway.base_url",
		"LINEBRIDGE_LINE_CHANNEL_SECRET":     "line.channel_secret",
		"LINEBRIDGE_GATEWAY_TIMEOUT_SECONDS": "gateway.timeout_seconds",
		"LINEBRIDGE_LOGGING_ADD_SOURCE":      "logging.add_source",
	}

	for input, want := range cases {
		if got := envKey(input); got != want {
			t.Fatalf("envKey(%q) = %q, want %q", input, got, want)
		}
	}
}

func clearBridgeEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LINEBRIDGE_SERVER_HOST", "LINEBRIDGE_SERVER_PORT",
		"LINEBRIDGE_LINE_CHANNEL_SECRET", "LINEBRIDGE_LINE_CHANNEL_ACCESS_TOKEN", "LINEBRIDGE_LINE_API_BASE",
		"LINEBRIDGE_GATEWAY_BASE_URL", "LINEBRIDGE_GATEWAY_TOKEN", "LINEBRIDGE_GATEWAY_MODEL",
		"LINEBRIDGE_GATEWAY_TIMEOUT_SECONDS", "LINEBRIDGE_GATEWAY_MAX_RETRIES",
		"LINEBRIDGE_LOGGING_FORMAT", "LINEBRIDGE_LOGGING_LEVEL", "LINEBRIDGE_LOGGING_ADD_SOURCE",
		"LINE_CHANNEL_SECRET", "LINE_CHANNEL_ACCESS_TOKEN",
		"OPENCLAW_BASE_URL", "OPENCLAW_GATEWAY_TOKEN",
	} {
		// t.Setenv registers restoration, then the unset isolates the test.
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}
