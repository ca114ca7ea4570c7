package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"traffic-agent-service/internal/models"
	"traffic-agent-service/internal/services"
)

type StreamHandlers struct {
	Sessions *services.SessionManager
	Logger   zerolog.Logger
}

func sseWriteEvent(w io.Writer, event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(b)); err != nil {
		return err
	}
	return nil
}

// HandleChatStream runs a chat turn over SSE: one "progress" event per
// tool invocation, then a final "done" event carrying the full response.
func (h *StreamHandlers) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming_not_supported"})
		return
	}

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
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "session_unavailable", "message": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	result, err := svc.Chat(r.Context(), req.Message, func(event models.ToolProgress) {
		_ = sseWriteEvent(w, "progress", event)
		flusher.Flush()
	})
	if err != nil {
		h.Logger.Error().Err(err).Str("session", sessionID).Msg("chat stream failed")
		_ = sseWriteEvent(w, "error", map[string]any{"error": "chat_failed", "message": err.Error()})
		flusher.Flush()
		return
	}

	_ = sseWriteEvent(w, "done", models.ChatResponse{
		Response:     result.Response,
		SessionID:    sessionID,
		MapData:      result.MapData,
		ToolProgress: result.ToolProgress,
	})
	flusher.Flush()
}
