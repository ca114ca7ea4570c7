package config

import (
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Port               string `koanf:"port"`
	AnthropicAPIKey    string `koanf:"anthropic_api_key"`
	AnthropicModel     string `koanf:"anthropic_model"`
	MCPServerURL       string `koanf:"mcp_server_url"`
	DatabaseURL        string `koanf:"database_url"`
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`
	LogLevel           string `koanf:"log_level"`
}

// Load reads configuration from the environment. Only MCP_SERVER_URL has
// a hard default; ANTHROPIC_API_KEY and DATABASE_URL may be absent, which
// gates the /health flags and persistence rather than failing startup.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return Config{}, err
	}

	defaults := map[string]string{
		"port":                 "3001",
		"anthropic_model":      "claude-sonnet-4-20250514",
		"mcp_server_url":       "http://localhost:8080/sse",
		"cors_allowed_origins": "*",
		"log_level":            "info",
	}
	for key, val := range defaults {
		if strings.TrimSpace(k.String(key)) == "" {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}

	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.AnthropicAPIKey = strings.TrimSpace(cfg.AnthropicAPIKey)
	cfg.MCPServerURL = strings.TrimSpace(cfg.MCPServerURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)

	return cfg, nil
}

// AnthropicConfigured reports whether a reasoning-API credential is set.
func (c Config) AnthropicConfigured() bool {
	return c.AnthropicAPIKey != ""
}

// MCPConfigured reports whether a tool-server endpoint is set.
func (c Config) MCPConfigured() bool {
	return c.MCPServerURL != ""
}

// PersistenceConfigured reports whether transcript mirroring is enabled.
func (c Config) PersistenceConfigured() bool {
	return c.DatabaseURL != ""
}
