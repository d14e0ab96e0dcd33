package entities

import (
	"strings"
	"testing"
)

func TestNewRemoteSession(t *testing.T) {
	session := NewRemoteSession("session-123")

	if session.ID != "session-123" {
		t.Errorf("ID = %q, want %q", session.ID, "session-123")
	}
	if session.Origin != SessionOriginRemote {
		t.Errorf("Origin = %q, want %q", session.Origin, SessionOriginRemote)
	}
	if session.IsFallback() {
		t.Error("remote session reported as fallback")
	}
	if session.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if err := session.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestNewLocalSession(t *testing.T) {
	session := NewLocalSession()

	if !strings.HasPrefix(session.ID, "local-") {
		t.Errorf("ID = %q, want local- prefix", session.ID)
	}
	if session.Origin != SessionOriginLocal {
		t.Errorf("Origin = %q, want %q", session.Origin, SessionOriginLocal)
	}
	if !session.IsFallback() {
		t.Error("local session not reported as fallback")
	}
	if err := session.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	other := NewLocalSession()
	if other.ID == session.ID {
		t.Error("local session identifiers are not unique")
	}
}

func TestSessionValidate(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		wantErr bool
	}{
		{
			name:    "valid remote",
			session: Session{ID: "abc", Origin: SessionOriginRemote},
			wantErr: false,
		},
		{
			name:    "valid local",
			session: Session{ID: "local-abc", Origin: SessionOriginLocal},
			wantErr: false,
		},
		{
			name:    "missing id",
			session: Session{Origin: SessionOriginRemote},
			wantErr: true,
		},
		{
			name:    "unknown origin",
			session: Session{ID: "abc", Origin: SessionOrigin("unknown")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
