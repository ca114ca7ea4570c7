package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"traffic-agent-service/internal/models"
)

// PostgresStore mirrors chat transcripts to Postgres. Callers treat it
// as best-effort: a write failure degrades persistence, not the chat.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			map_data JSONB,
			tool_progress JSONB,
			seq BIGSERIAL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS chat_messages_session_id_idx ON chat_messages(session_id, seq)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) touchSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = NOW() WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID string, doc models.TranscriptMessage) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", nil
	}
	if err := s.touchSession(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, err2 := s.db.ExecContext(ctx,
				`INSERT INTO chat_sessions (session_id) VALUES ($1)`,
				sessionID,
			); err2 != nil {
				return "", err2
			}
		} else {
			return "", err
		}
	}
	mapData, err := marshalNullable(doc.MapData)
	if err != nil {
		return "", err
	}
	progress, err := marshalNullable(doc.ToolProgress)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, status, source, map_data, tool_progress)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, sessionID, doc.Role, doc.Content, doc.Status, doc.Source, mapData, progress,
	); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, sessionID, messageID string, patch models.TranscriptPatch) error {
	if strings.TrimSpace(messageID) == "" {
		return nil
	}
	sets := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if patch.Content != nil {
		args = append(args, *patch.Content)
		sets = append(sets, "content = $"+itoa(len(args)))
	}
	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, "status = $"+itoa(len(args)))
	}
	if patch.MapData != nil {
		mapData, err := marshalNullable(patch.MapData)
		if err != nil {
			return err
		}
		args = append(args, mapData)
		sets = append(sets, "map_data = $"+itoa(len(args)))
	}
	if patch.ToolProgress != nil {
		progress, err := marshalNullable(patch.ToolProgress)
		if err != nil {
			return err
		}
		args = append(args, progress)
		sets = append(sets, "tool_progress = $"+itoa(len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, sessionID, messageID)
	q := "UPDATE chat_messages SET " + strings.Join(sets, ", ") +
		" WHERE session_id = $" + itoa(len(args)-1) + " AND id = $" + itoa(len(args))
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.TranscriptMessage, error) {
	if strings.TrimSpace(sessionID) == "" {
		return []models.TranscriptMessage{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, status, source, map_data, tool_progress, created_at
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY seq DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.TranscriptMessage, 0)
	for rows.Next() {
		var m models.TranscriptMessage
		var mapData, progress []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Status, &m.Source, &mapData, &progress, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(mapData) > 0 {
			if err := json.Unmarshal(mapData, &m.MapData); err != nil {
				return nil, err
			}
		}
		if len(progress) > 0 {
			if err := json.Unmarshal(progress, &m.ToolProgress); err != nil {
				return nil, err
			}
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// marshalNullable encodes v as JSON, mapping nil values to SQL NULL.
func marshalNullable(v any) (any, error) {
	switch vv := v.(type) {
	case *models.TrafficMapData:
		if vv == nil {
			return nil, nil
		}
	case []models.ToolProgress:
		if vv == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// itoa keeps the placeholder building above readable.
func itoa(n int) string { return strconv.Itoa(n) }
