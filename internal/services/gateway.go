package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// ToolSchema describes one tool offered by the MCP server.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema any
}

// ToolGateway is the tool-server surface the orchestrator needs.
type ToolGateway interface {
	ListTools(ctx context.Context) ([]ToolSchema, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// MCPGateway talks to the traffic MCP server over SSE. Each operation
// opens a fresh connection and closes it when done; the only state kept
// between calls is the tool-schema cache.
type MCPGateway struct {
	ServerURL string
	HTTP      *http.Client
	Timeout   time.Duration
	Logger    zerolog.Logger

	mu         sync.RWMutex
	toolsCache []ToolSchema
}

const defaultGatewayTimeout = 60 * time.Second

func (g *MCPGateway) timeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return defaultGatewayTimeout
}

// connect opens a new client session against the MCP server. Callers own
// the session and must close it.
func (g *MCPGateway) connect(ctx context.Context) (*mcp.ClientSession, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "traffic-agent-service",
		Version: "1.0.0",
	}, nil)

	transport := &mcp.SSEClientTransport{
		Endpoint:   g.ServerURL,
		HTTPClient: g.HTTP,
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to MCP server %s: %w", g.ServerURL, err)
	}
	return session, nil
}

// ListTools fetches the tool schemas from the MCP server and refreshes
// the cache. Called once per orchestrator initialization.
func (g *MCPGateway) ListTools(ctx context.Context) ([]ToolSchema, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	session, err := g.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			g.Logger.Warn().Err(cerr).Msg("closing MCP session after list")
		}
	}()

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	tools := make([]ToolSchema, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	g.mu.Lock()
	g.toolsCache = tools
	g.mu.Unlock()

	g.Logger.Info().Int("tools", len(tools)).Msg("fetched MCP tool schemas")
	return tools, nil
}

// CachedTools returns the last fetched schemas in Anthropic tool format.
// Empty until ListTools succeeds once.
func (g *MCPGateway) CachedTools() []AnthropicTool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tools := make([]AnthropicTool, 0, len(g.toolsCache))
	for _, t := range g.toolsCache {
		tools = append(tools, AnthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return tools
}

// CallTool invokes a named tool and normalizes the result to text. The
// connection is closed whether or not the call succeeds. Tool-level
// errors arrive inside the result content and are returned as text so
// the model can see and correct them; only transport and protocol
// failures return an error.
func (g *MCPGateway) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	g.Logger.Debug().Str("tool", name).Interface("args", args).Msg("calling MCP tool")

	session, err := g.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			g.Logger.Warn().Err(cerr).Str("tool", name).Msg("closing MCP session after call")
		}
	}()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w", name, err)
	}

	return formatToolResult(result), nil
}

// formatToolResult joins the text contents of a call result. Non-text
// contents are ignored; an empty result falls back to its JSON form.
func formatToolResult(result *mcp.CallToolResult) string {
	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	raw, _ := json.Marshal(result)
	return string(raw)
}
