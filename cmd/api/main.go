package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"traffic-agent-service/internal/config"
	"traffic-agent-service/internal/handlers"
	"traffic-agent-service/internal/routes"
	"traffic-agent-service/internal/services"
	"traffic-agent-service/internal/store"
)

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func connectDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	// Transcript persistence is optional: without DATABASE_URL the
	// service runs with in-memory history only.
	var pg *store.PostgresStore
	if cfg.PersistenceConfigured() {
		db, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()
		if err := store.NewPostgresStore(db).EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("schema setup failed")
		}
		pg = store.NewPostgresStore(db)
		logger.Info().Msg("transcript persistence enabled")
	} else {
		logger.Info().Msg("DATABASE_URL not set, transcript persistence disabled")
	}
	cancel()

	hc := &http.Client{Timeout: 60 * time.Second}

	gateway := &services.MCPGateway{
		ServerURL: cfg.MCPServerURL,
		HTTP:      hc,
		Logger:    logger.With().Str("component", "mcp_gateway").Logger(),
	}
	anthropic := &services.AnthropicClient{APIKey: cfg.AnthropicAPIKey, HTTP: hc}

	sessions := services.NewSessionManager(func(sessionID string) *services.ChatService {
		svc := &services.ChatService{
			SessionID: sessionID,
			Anthropic: anthropic,
			Gateway:   gateway,
			Logger:    logger.With().Str("component", "chat_service").Logger(),
			Model:     cfg.AnthropicModel,
		}
		if pg != nil {
			svc.Store = pg
		}
		return svc
	}, logger.With().Str("component", "session_manager").Logger())

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sessions.StartSweeper(sweepCtx)

	chatHandlers := &handlers.ChatHandlers{Sessions: sessions, Logger: logger}
	streamHandlers := &handlers.StreamHandlers{Sessions: sessions, Logger: logger}
	systemHandlers := &handlers.SystemHandlers{Config: cfg, Sessions: sessions, Gateway: gateway, Logger: logger}
	if pg != nil {
		systemHandlers.Store = pg
	}

	h := routes.NewRouter(cfg, logger, chatHandlers, streamHandlers, systemHandlers)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("mcp_server", cfg.MCPServerURL).Msg("traffic-agent-service listening")
	if err := http.ListenAndServe(addr, h); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
