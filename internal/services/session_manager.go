package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	sessionTTL        = 30 * time.Minute
	sessionSweepEvery = 5 * time.Minute
)

// ServiceFactory builds an uninitialized orchestrator for a session id.
type ServiceFactory func(sessionID string) *ChatService

type sessionEntry struct {
	service        *ChatService
	createdAt      time.Time
	lastAccessedAt time.Time
}

// SessionManager maps session ids to live orchestrators and evicts the
// ones idle past the TTL.
type SessionManager struct {
	Logger zerolog.Logger

	factory ServiceFactory
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	stopOnce sync.Once
	stop     chan struct{}
}

func NewSessionManager(factory ServiceFactory, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		Logger:   logger,
		factory:  factory,
		ttl:      sessionTTL,
		sessions: make(map[string]*sessionEntry),
		stop:     make(chan struct{}),
	}
}

// GetOrCreate returns the session's orchestrator, refreshing its
// last-access time, or builds and initializes a new one. A session whose
// initialization fails is never registered, so the next request retries
// from scratch.
func (m *SessionManager) GetOrCreate(ctx context.Context, sessionID string) (*ChatService, error) {
	m.mu.Lock()
	if entry, ok := m.sessions[sessionID]; ok {
		entry.lastAccessedAt = time.Now()
		m.mu.Unlock()
		return entry.service, nil
	}
	m.mu.Unlock()

	// Initialization talks to the tool server; keep it outside the lock.
	svc := m.factory(sessionID)
	if err := svc.Initialize(ctx); err != nil {
		m.Logger.Error().Err(err).Str("session", sessionID).Msg("session initialization failed")
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.sessions[sessionID]; ok {
		// Lost the race to a concurrent first request.
		entry.lastAccessedAt = time.Now()
		return entry.service, nil
	}
	now := time.Now()
	m.sessions[sessionID] = &sessionEntry{service: svc, createdAt: now, lastAccessedAt: now}
	m.Logger.Info().Str("session", sessionID).Int("active", len(m.sessions)).Msg("session created")
	return svc, nil
}

// Clear empties the session's conversation history. Returns false when
// the session does not exist.
func (m *SessionManager) Clear(sessionID string) bool {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	if ok {
		entry.lastAccessedAt = time.Now()
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	entry.service.ClearHistory()
	return true
}

// Delete drops the session entirely.
func (m *SessionManager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}

// Count reports the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) sweepExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, entry := range m.sessions {
		if now.Sub(entry.lastAccessedAt) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper evicts idle sessions on a fixed interval until Stop or
// context cancellation.
func (m *SessionManager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sessionSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case now := <-ticker.C:
				if removed := m.sweepExpired(now); removed > 0 {
					m.Logger.Info().Int("removed", removed).Int("active", m.Count()).Msg("expired sessions swept")
				}
			}
		}
	}()
}

// Stop halts the sweeper goroutine.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
