package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"traffic-agent-service/internal/models"
	"traffic-agent-service/internal/services"
)

// defaultSessionID groups requests that carry no session id into one
// shared conversation.
const defaultSessionID = "default"

type ChatHandlers struct {
	Sessions *services.SessionManager
	Logger   zerolog.Logger
}

func (h *ChatHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "message_required"})
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	svc, err := h.Sessions.GetOrCreate(r.Context(), sessionID)
	if err != nil {
		h.Logger.Error().Err(err).Str("session", sessionID).Msg("session unavailable")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "session_unavailable", "message": err.Error()})
		return
	}

	result, err := svc.Chat(r.Context(), req.Message, nil)
	if err != nil {
		h.Logger.Error().Err(err).Str("session", sessionID).Msg("chat failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "chat_failed", "message": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Response:     result.Response,
		SessionID:    sessionID,
		MapData:      result.MapData,
		ToolProgress: result.ToolProgress,
	})
}

// HandleClear always answers 200; the success flag tells the caller
// whether the session existed.
func (h *ChatHandlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if h.Sessions.Clear(sessionID) {
		writeJSON(w, http.StatusOK, models.ClearResponse{Message: "conversation history cleared", Success: true})
		return
	}
	writeJSON(w, http.StatusOK, models.ClearResponse{Message: "session not found", Success: false})
}
