package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionOrigin tells where a session identifier came from.
type SessionOrigin string

const (
	// SessionOriginRemote means the agent service issued the identifier.
	SessionOriginRemote SessionOrigin = "remote"
	// SessionOriginLocal means the service was unreachable and the
	// identifier was synthesized locally so the pipeline keeps working.
	SessionOriginLocal SessionOrigin = "local-fallback"
)

// Session scopes one continuous conversation with the agent service.
// A session is immutable once created; starting over supersedes it with
// a new one, it is never mutated in place.
type Session struct {
	ID        string        `json:"id"`
	Origin    SessionOrigin `json:"origin"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewRemoteSession wraps an identifier issued by the agent service.
func NewRemoteSession(id string) *Session {
	return &Session{
		ID:        id,
		Origin:    SessionOriginRemote,
		CreatedAt: time.Now(),
	}
}

// NewLocalSession synthesizes a fallback session with a locally generated
// identifier. The send pathway selects the degraded responder from the
// origin, so callers downstream are unaffected by the missing backend.
func NewLocalSession() *Session {
	return &Session{
		ID:        "local-" + uuid.New().String(),
		Origin:    SessionOriginLocal,
		CreatedAt: time.Now(),
	}
}

// IsFallback reports whether this session runs against the local responder.
func (s *Session) IsFallback() bool {
	return s.Origin == SessionOriginLocal
}

// Validate validates the session data.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.Origin != SessionOriginRemote && s.Origin != SessionOriginLocal {
		return errors.New("invalid session origin")
	}
	return nil
}
