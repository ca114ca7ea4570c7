package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"traffic-agent-service/internal/models"
)

const defaultMaxIterations = 10

const anthropicMaxTokens = 4096

// systemPrompt steers the model toward short Spanish answers and the
// geocode → traffic → route tool workflows the map rendering depends on.
const systemPrompt = `Eres un asistente de tráfico vehicular para el área de Los Ángeles. Responde de forma BREVE y DIRECTA.

CAPACIDADES DE MAPAS INTERACTIVOS:
✅ PUEDES mostrar mapas interactivos en el chat, si es que los resultados de las herramientas lo permiten

REGLAS IMPORTANTES:
- Máximo 2-3 oraciones por respuesta
- Solo información esencial y relevante
- Usa las herramientas para datos actuales
- Siempre en español
- Si una herramienta devuelve un error, corrígelo en la siguiente iteración, o pide un nuevo lugar para buscar

WORKFLOW para mostrar mapa con tráfico:
a) geocode_location("Downtown") → coordenadas (por defecto busca en Los Angeles)
b) get_traffic_at_location(lat, lon) → estaciones cercanas
c) El mapa se mostrará AUTOMÁTICAMENTE en el chat

WORKFLOW OBLIGATORIO para rutas entre dos lugares:
a) Geocodificar ORIGEN y obtener estaciones cercanas con get_traffic_at_location
b) Extraer ID de la estación MÁS CERCANA al origen (campo "id")
c) Geocodificar DESTINO y obtener sus estaciones cercanas
d) Extraer ID de la estación MÁS CERCANA al destino
e) Recopilar predicciones SPI de TODAS las estaciones encontradas con predict_traffic_spi
f) Llamar suggest_routes(origin_station_id, destination_station_id, predictions_dict)

NUNCA llames suggest_routes sin IDs numéricos válidos de estaciones y un diccionario de predicciones con al menos origen y destino. El mapa mostrará la ruta automáticamente.`

// TranscriptStore mirrors conversation documents to a durable store.
// Calls are best-effort: the orchestrator logs and swallows failures.
type TranscriptStore interface {
	AppendMessage(ctx context.Context, sessionID string, doc models.TranscriptMessage) (string, error)
	UpdateMessage(ctx context.Context, sessionID, messageID string, patch models.TranscriptPatch) error
}

// ProgressSink receives tool progress events as they happen.
type ProgressSink func(models.ToolProgress)

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Response     string
	MapData      *models.TrafficMapData
	ToolProgress []models.ToolProgress
}

// ChatService drives the conversational tool-orchestration loop for one
// session: it owns the conversation buffer, repeatedly calls the
// reasoning API, executes requested tools through the gateway, and folds
// structured tool outputs into a per-turn map payload.
type ChatService struct {
	SessionID string
	Anthropic ReasoningClient
	Gateway   ToolGateway
	Store     TranscriptStore
	Logger    zerolog.Logger

	Model              string
	MaxIterations      int
	MaxHistoryMessages int
	MaxToolResultChars int

	turnMu      sync.Mutex
	history     *History
	tools       []AnthropicTool
	initialized bool
}

// Initialize fetches the tool schemas once. Failure propagates so the
// registry can refuse to register the session.
func (c *ChatService) Initialize(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	schemas, err := c.Gateway.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("initialize chat service: %w", err)
	}
	tools := make([]AnthropicTool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, AnthropicTool{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.InputSchema,
		})
	}
	c.tools = tools
	c.history = NewHistory(c.MaxHistoryMessages)
	c.initialized = true
	c.Logger.Info().Int("tools", len(tools)).Str("session", c.SessionID).Msg("chat service initialized")
	return nil
}

// ClearHistory empties the conversation buffer.
func (c *ChatService) ClearHistory() {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	if c.history != nil {
		c.history.Clear()
	}
	c.Logger.Info().Str("session", c.SessionID).Msg("conversation history cleared")
}

// HistoryLen reports the number of buffered messages.
func (c *ChatService) HistoryLen() int {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	if c.history == nil {
		return 0
	}
	return c.history.Len()
}

func (c *ChatService) maxIterations() int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return defaultMaxIterations
}

// Chat processes one user message to completion: append, reason, execute
// requested tools in emission order, fold map data, loop until the model
// stops requesting tools or the iteration cap is hit. Overlapping calls
// on the same session queue behind the turn lock.
func (c *ChatService) Chat(ctx context.Context, userMessage string, onProgress ProgressSink) (ChatResult, error) {
	if strings.TrimSpace(userMessage) == "" {
		return ChatResult{}, ErrEmptyMessage
	}

	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	if c.history == nil {
		c.history = NewHistory(c.MaxHistoryMessages)
	}

	c.Logger.Info().Str("session", c.SessionID).Int("chars", len(userMessage)).Msg("processing message")

	// Turn-scoped state.
	builder := newMapBuilder(c.Logger)
	var progress []models.ToolProgress
	var draftID string

	c.history.Append(Message{Role: "user", Content: TextContent(userMessage)})

	c.persistAppend(ctx, models.TranscriptMessage{
		Role:    "user",
		Content: userMessage,
		Source:  "api",
	})
	// Draft assistant message, updated in place as tools run.
	draftID = c.persistAppend(ctx, models.TranscriptMessage{
		Role:   "assistant",
		Status: "running",
		Source: "api_draft",
	})

	c.history.Trim()

	response, err := c.callModel(ctx)
	if err != nil {
		return ChatResult{}, fmt.Errorf("failed to call reasoning API: %w", err)
	}

	iteration := 0
	for response.StopReason == StopReasonToolUse && iteration < c.maxIterations() {
		iteration++
		c.Logger.Debug().Int("iteration", iteration).Str("session", c.SessionID).Msg("tool use iteration")

		c.history.Append(Message{Role: "assistant", Content: responseContent(response)})

		toolResults := make(ContentBlock, 0, len(response.Content))
		previousExplanation := ""
		for _, block := range response.Content {
			if block.Type == "text" {
				previousExplanation = block.Text
				continue
			}
			if block.Type != "tool_use" {
				continue
			}

			message := progressMessage(block.Name, block.Input, previousExplanation)
			previousExplanation = ""

			event := models.ToolProgress{
				ToolName:  block.Name,
				Message:   message,
				Timestamp: time.Now().UnixMilli(),
			}
			progress = append(progress, event)
			if onProgress != nil {
				onProgress(event)
			}
			c.persistDraftProgress(ctx, draftID, progress, builder.MapData())

			toolResults = append(toolResults, ContentPart{
				Type:      "tool_result",
				ToolUseID: block.ID,
				Content:   c.executeTool(ctx, block.Name, block.Input, builder),
			})
		}

		c.history.Append(Message{Role: "user", Content: toolResults})
		c.history.Trim()

		response, err = c.callModel(ctx)
		if err != nil {
			return ChatResult{}, fmt.Errorf("failed to continue conversation: %w", err)
		}
	}

	finalResponse := response.Text()
	c.history.Append(Message{Role: "assistant", Content: responseContent(response)})

	c.finalizeDraft(ctx, draftID, finalResponse, progress, builder.MapData())

	c.Logger.Info().
		Str("session", c.SessionID).
		Int("iterations", iteration).
		Int("progress_events", len(progress)).
		Msg("chat turn completed")

	return ChatResult{
		Response:     finalResponse,
		MapData:      builder.MapData(),
		ToolProgress: progress,
	}, nil
}

// executeTool runs one tool call and returns the tool-result text fed
// back to the model. Failures never abort the turn: transport errors and
// non-JSON results become visible error text so the model can
// self-correct in the next iteration.
func (c *ChatService) executeTool(ctx context.Context, name string, input map[string]any, builder *mapBuilder) string {
	raw, err := c.Gateway.CallTool(ctx, name, input)
	if err != nil {
		c.Logger.Error().Err(err).Str("tool", name).Msg("tool execution error")
		return "Error ejecutando herramienta: " + err.Error()
	}
	c.Logger.Debug().Str("tool", name).Int("chars", len(raw)).Msg("tool executed")

	if err := builder.Fold(name, raw); err != nil {
		c.Logger.Error().Err(err).Str("tool", name).Msg("tool result did not parse")
		return "Error ejecutando herramienta: " + err.Error()
	}

	return truncateToolResult(raw, c.MaxToolResultChars)
}

func (c *ChatService) callModel(ctx context.Context) (*MessagesResponse, error) {
	return c.Anthropic.CreateMessage(ctx, &MessagesRequest{
		Model:     c.Model,
		MaxTokens: anthropicMaxTokens,
		System:    systemPrompt,
		Tools:     c.tools,
		Messages:  c.history.Snapshot(),
	})
}

// responseContent converts model response blocks into history content.
func responseContent(response *MessagesResponse) ContentBlock {
	content := make(ContentBlock, 0, len(response.Content))
	for _, block := range response.Content {
		content = append(content, ContentPart{
			Type:  block.Type,
			Text:  block.Text,
			ID:    block.ID,
			Name:  block.Name,
			Input: block.Input,
		})
	}
	return content
}

// persistAppend mirrors a document to the transcript store, returning
// the new document id. Best-effort: failures are logged, never surfaced.
func (c *ChatService) persistAppend(ctx context.Context, doc models.TranscriptMessage) string {
	if c.Store == nil || c.SessionID == "" {
		return ""
	}
	id, err := c.Store.AppendMessage(ctx, c.SessionID, doc)
	if err != nil {
		c.Logger.Warn().Err(err).Str("session", c.SessionID).Msg("transcript append failed")
		return ""
	}
	return id
}

func (c *ChatService) persistDraftProgress(ctx context.Context, draftID string, progress []models.ToolProgress, mapData *models.TrafficMapData) {
	if c.Store == nil || draftID == "" {
		return
	}
	status := "running"
	if err := c.Store.UpdateMessage(ctx, c.SessionID, draftID, models.TranscriptPatch{
		Status:       &status,
		ToolProgress: progress,
		MapData:      mapData,
	}); err != nil {
		c.Logger.Warn().Err(err).Str("session", c.SessionID).Msg("transcript draft update failed")
	}
}

func (c *ChatService) finalizeDraft(ctx context.Context, draftID, content string, progress []models.ToolProgress, mapData *models.TrafficMapData) {
	if c.Store == nil {
		return
	}
	if draftID == "" {
		c.persistAppend(ctx, models.TranscriptMessage{
			Role:         "assistant",
			Content:      content,
			MapData:      mapData,
			ToolProgress: progress,
		})
		return
	}
	status := "done"
	if err := c.Store.UpdateMessage(ctx, c.SessionID, draftID, models.TranscriptPatch{
		Content:      &content,
		Status:       &status,
		MapData:      mapData,
		ToolProgress: progress,
	}); err != nil {
		c.Logger.Warn().Err(err).Str("session", c.SessionID).Msg("transcript finalize failed")
	}
}
