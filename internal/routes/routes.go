package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"traffic-agent-service/internal/config"
	"traffic-agent-service/internal/handlers"
)

func NewRouter(cfg config.Config, logger zerolog.Logger, chat *handlers.ChatHandlers, stream *handlers.StreamHandlers, system *handlers.SystemHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(handlers.WithRequestLogging(logger))
	r.Use(handlers.WithCORS(cfg))

	r.Get("/health", system.HandleHealth)
	r.Get("/tools", system.HandleTools)
	r.Get("/messages/{sessionId}", system.HandleMessages)

	r.Post("/chat", chat.HandleChat)
	r.Post("/chat/stream", stream.HandleChatStream)
	r.Post("/clear/{sessionId}", chat.HandleClear)

	return r
}
