package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFactory(gateway ToolGateway) ServiceFactory {
	return func(sessionID string) *ChatService {
		return &ChatService{
			SessionID: sessionID,
			Anthropic: &scriptedModel{responses: []*MessagesResponse{textResponse("hola")}},
			Gateway:   gateway,
			Logger:    zerolog.Nop(),
		}
	}
}

func TestGetOrCreateReturnsSameService(t *testing.T) {
	m := NewSessionManager(testFactory(&stubGateway{}), zerolog.Nop())

	first, err := m.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	second, err := m.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Count())
}

func TestGetOrCreateDoesNotRegisterOnInitFailure(t *testing.T) {
	m := NewSessionManager(testFactory(&stubGateway{listErr: errors.New("server down")}), zerolog.Nop())

	_, err := m.GetOrCreate(context.Background(), "s1")

	require.Error(t, err)
	assert.Equal(t, 0, m.Count())
}

func TestClearUnknownSessionReturnsFalse(t *testing.T) {
	m := NewSessionManager(testFactory(&stubGateway{}), zerolog.Nop())

	assert.False(t, m.Clear("nope"))
}

func TestClearEmptiesSessionHistory(t *testing.T) {
	m := NewSessionManager(testFactory(&stubGateway{}), zerolog.Nop())
	svc, err := m.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	_, err = svc.Chat(context.Background(), "hola", nil)
	require.NoError(t, err)
	require.Equal(t, 2, svc.HistoryLen())

	assert.True(t, m.Clear("s1"))
	assert.Equal(t, 0, svc.HistoryLen())
	// The session itself survives a clear.
	assert.Equal(t, 1, m.Count())
}

func TestDeleteRemovesSession(t *testing.T) {
	m := NewSessionManager(testFactory(&stubGateway{}), zerolog.Nop())
	_, err := m.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)

	assert.True(t, m.Delete("s1"))
	assert.False(t, m.Delete("s1"))
	assert.Equal(t, 0, m.Count())
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	m := NewSessionManager(testFactory(&stubGateway{}), zerolog.Nop())
	first, err := m.GetOrCreate(context.Background(), "old")
	require.NoError(t, err)
	_, err = m.GetOrCreate(context.Background(), "fresh")
	require.NoError(t, err)

	m.mu.Lock()
	m.sessions["old"].lastAccessedAt = time.Now().Add(-sessionTTL - time.Minute)
	m.mu.Unlock()

	removed := m.sweepExpired(time.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Count())

	// A request after eviction builds a fresh orchestrator.
	second, err := m.GetOrCreate(context.Background(), "old")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestAccessRefreshesTTL(t *testing.T) {
	m := NewSessionManager(testFactory(&stubGateway{}), zerolog.Nop())
	_, err := m.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)

	m.mu.Lock()
	m.sessions["s1"].lastAccessedAt = time.Now().Add(-sessionTTL + time.Minute)
	m.mu.Unlock()

	_, err = m.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, 0, m.sweepExpired(time.Now()))
	assert.Equal(t, 1, m.Count())
}
