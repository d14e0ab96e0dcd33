package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/entities"
	"github.com/donnalabs/agentcore/domain/repositories"
)

// SessionManager owns the lifecycle of the current conversation session.
// It is the only writer of the current session; the send pathway reads it.
type SessionManager struct {
	agent  repositories.AgentService
	logger *zap.Logger

	mu      sync.Mutex
	current *entities.Session
}

// NewSessionManager creates a new session manager.
func NewSessionManager(agent repositories.AgentService, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		agent:  agent,
		logger: logger,
	}
}

// EnsureSession returns the current session, creating one on first use.
// Session creation never blocks the pipeline on a missing backend: if the
// agent service cannot be reached, a local-fallback session is synthesized
// and the condition is only logged.
func (m *SessionManager) EnsureSession(ctx context.Context) *entities.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current
	}
	m.current = m.create(ctx)
	return m.current
}

// CreateNewSession discards the current session and creates a fresh one,
// used for the explicit "start over" action. The old session is superseded,
// never mutated.
func (m *SessionManager) CreateNewSession(ctx context.Context) *entities.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = m.create(ctx)
	return m.current
}

// Current returns the current session, or nil before the first EnsureSession.
func (m *SessionManager) Current() *entities.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *SessionManager) create(ctx context.Context) *entities.Session {
	id, err := m.agent.CreateSession(ctx)
	if err != nil {
		session := entities.NewLocalSession()
		m.logger.Warn("Session creation failed, falling back to local session",
			zap.String("sessionID", session.ID),
			zap.Error(err))
		return session
	}

	session := entities.NewRemoteSession(id)
	m.logger.Info("Session created",
		zap.String("sessionID", session.ID),
		zap.String("origin", string(session.Origin)))
	return session
}
