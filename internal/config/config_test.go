package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_MODEL", "")
	t.Setenv("MCP_SERVER_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.AnthropicModel)
	assert.Equal(t, "http://localhost:8080/sse", cfg.MCPServerURL)
	assert.Equal(t, "*", cfg.CORSAllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.False(t, cfg.AnthropicConfigured())
	assert.True(t, cfg.MCPConfigured())
	assert.False(t, cfg.PersistenceConfigured())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ANTHROPIC_API_KEY", "  sk-test  ")
	t.Setenv("ANTHROPIC_MODEL", "claude-haiku-3-5")
	t.Setenv("MCP_SERVER_URL", "http://mcp.internal:8080/sse")
	t.Setenv("DATABASE_URL", "postgres://localhost/traffic")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sk-test", cfg.AnthropicAPIKey)
	assert.Equal(t, "claude-haiku-3-5", cfg.AnthropicModel)
	assert.Equal(t, "http://mcp.internal:8080/sse", cfg.MCPServerURL)
	assert.Equal(t, "https://app.example.com", cfg.CORSAllowedOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.True(t, cfg.AnthropicConfigured())
	assert.True(t, cfg.PersistenceConfigured())
}
