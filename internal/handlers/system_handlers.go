package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"traffic-agent-service/internal/config"
	"traffic-agent-service/internal/models"
	"traffic-agent-service/internal/services"
)

// TranscriptReader is the read side of the transcript store. Nil when
// persistence is not configured.
type TranscriptReader interface {
	ListMessages(ctx context.Context, sessionID string, limit int) ([]models.TranscriptMessage, error)
}

type SystemHandlers struct {
	Config   config.Config
	Sessions *services.SessionManager
	Gateway  services.ToolGateway
	Store    TranscriptReader
	Logger   zerolog.Logger
}

func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:              "healthy",
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
		Sessions:            h.Sessions.Count(),
		MCPConfigured:       h.Config.MCPConfigured(),
		AnthropicConfigured: h.Config.AnthropicConfigured(),
	})
}

// HandleTools queries the tool server live so the endpoint doubles as a
// connectivity check.
func (h *SystemHandlers) HandleTools(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.Gateway.ListTools(r.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("tool listing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "tools_unavailable", "message": err.Error()})
		return
	}
	tools := make([]models.ToolInfo, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, models.ToolInfo{Name: s.Name, Description: s.Description})
	}
	writeJSON(w, http.StatusOK, tools)
}

func (h *SystemHandlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "persistence_not_configured"})
		return
	}
	sessionID := chi.URLParam(r, "sessionId")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := h.Store.ListMessages(r.Context(), sessionID, limit)
	if err != nil {
		h.Logger.Error().Err(err).Str("session", sessionID).Msg("transcript listing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "messages_unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages, "session_id": sessionID})
}
