package recognizer

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/repositories"
)

// MockRecognizer replays a scripted sequence of transcript fragments, used
// for demos and for exercising the voice pipeline without a speech backend.
type MockRecognizer struct {
	logger *zap.Logger
	script []repositories.TranscriptEvent
}

var _ repositories.SpeechRecognizer = (*MockRecognizer)(nil)

// NewMockRecognizer creates a mock recognizer. Each session replays script
// once and then blocks, like a live microphone with nobody speaking, until
// the session is closed or the context ends.
func NewMockRecognizer(script []repositories.TranscriptEvent, logger *zap.Logger) *MockRecognizer {
	return &MockRecognizer{
		logger: logger,
		script: script,
	}
}

func (m *MockRecognizer) Listen(ctx context.Context) (repositories.RecognitionSession, error) {
	m.logger.Info("Starting mock recognition session", zap.Int("fragments", len(m.script)))
	return &mockSession{
		ctx:    ctx,
		script: m.script,
		done:   make(chan struct{}),
	}, nil
}

type mockSession struct {
	ctx    context.Context
	script []repositories.TranscriptEvent
	done   chan struct{}

	mu     sync.Mutex
	pos    int
	closed bool
}

func (s *mockSession) Recv() (repositories.TranscriptEvent, error) {
	if err := s.ctx.Err(); err != nil {
		return repositories.TranscriptEvent{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return repositories.TranscriptEvent{}, io.EOF
	}
	if s.pos < len(s.script) {
		event := s.script[s.pos]
		s.pos++
		s.mu.Unlock()
		return event, nil
	}
	s.mu.Unlock()

	// Script exhausted. Hold the session open so the caller does not spin
	// restarting sessions that would replay the same utterance.
	select {
	case <-s.ctx.Done():
		return repositories.TranscriptEvent{}, s.ctx.Err()
	case <-s.done:
		return repositories.TranscriptEvent{}, io.EOF
	}
}

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}
