package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/donnalabs/agentcore/domain/entities"
	"github.com/donnalabs/agentcore/domain/repositories"
)

// fakeAgent is a scriptable AgentService shared across the usecase tests.
type fakeAgent struct {
	mu            sync.Mutex
	createErr     error
	createCalls   int
	streamErr     error
	streamDeltas  []string
	streamTailErr error
	override      repositories.DeltaStream
	lastSessionID string
	lastContent   string
}

func (f *fakeAgent) CreateSession(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return fmt.Sprintf("session-%d", f.createCalls), nil
}

func (f *fakeAgent) StreamMessage(ctx context.Context, sessionID string, content string) (repositories.DeltaStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSessionID = sessionID
	f.lastContent = content
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.override != nil {
		return f.override, nil
	}
	return &scriptedStream{deltas: f.streamDeltas, tailErr: f.streamTailErr}, nil
}

// scriptedStream replays deltas and then ends with tailErr or io.EOF.
type scriptedStream struct {
	deltas  []string
	tailErr error
	pos     int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		if s.tailErr != nil {
			return "", s.tailErr
		}
		return "", io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return delta, nil
}

func (s *scriptedStream) Close() error { return nil }

// blockingStream holds its caller in Recv until released, then ends.
type blockingStream struct {
	release chan struct{}
}

func (s *blockingStream) Recv() (string, error) {
	<-s.release
	return "", io.EOF
}

func (s *blockingStream) Close() error { return nil }

// waitFor polls until cond holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestEnsureSessionRemote(t *testing.T) {
	agent := &fakeAgent{}
	manager := NewSessionManager(agent, zaptest.NewLogger(t))

	session := manager.EnsureSession(context.Background())
	if session.Origin != entities.SessionOriginRemote {
		t.Errorf("origin = %q, want remote", session.Origin)
	}
	if session.ID != "session-1" {
		t.Errorf("id = %q", session.ID)
	}

	// Second call reuses the session without another create.
	again := manager.EnsureSession(context.Background())
	if again.ID != session.ID {
		t.Errorf("second EnsureSession returned %q, want %q", again.ID, session.ID)
	}
	if agent.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", agent.createCalls)
	}
}

func TestEnsureSessionFallsBackLocally(t *testing.T) {
	agent := &fakeAgent{createErr: errors.New("connection refused")}
	manager := NewSessionManager(agent, zaptest.NewLogger(t))

	session := manager.EnsureSession(context.Background())
	if !session.IsFallback() {
		t.Fatalf("origin = %q, want local fallback", session.Origin)
	}
	if session.ID == "" {
		t.Error("fallback session has no identifier")
	}
}

func TestCreateNewSessionSupersedes(t *testing.T) {
	agent := &fakeAgent{}
	manager := NewSessionManager(agent, zaptest.NewLogger(t))

	first := manager.EnsureSession(context.Background())
	second := manager.CreateNewSession(context.Background())

	if second.ID == first.ID {
		t.Error("new session did not supersede the old one")
	}
	if current := manager.Current(); current.ID != second.ID {
		t.Errorf("Current() = %q, want %q", current.ID, second.ID)
	}
	// The old session value is untouched.
	if first.ID != "session-1" {
		t.Errorf("old session mutated: %q", first.ID)
	}
}

func TestCurrentBeforeFirstUse(t *testing.T) {
	manager := NewSessionManager(&fakeAgent{}, zaptest.NewLogger(t))
	if manager.Current() != nil {
		t.Error("Current() non-nil before first EnsureSession")
	}
}
