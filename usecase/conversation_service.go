package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/entities"
	"github.com/donnalabs/agentcore/domain/repositories"
)

// ConversationService runs the send pathway: it begins a turn, streams the
// agent reply delta by delta into the in-flight assistant message, and
// publishes the running text to subscribers after every update. When the
// remote agent is unreachable it swaps in the degraded responder without
// changing anything downstream.
type ConversationService struct {
	sessions *SessionManager
	agent    repositories.AgentService
	degraded *DegradedResponder
	logger   *zap.Logger

	mu           sync.Mutex
	conversation *entities.Conversation
	subscribers  map[int]func(entities.ConversationMessage)
	nextSubID    int
}

// NewConversationService creates a conversation service.
func NewConversationService(
	sessions *SessionManager,
	agent repositories.AgentService,
	degraded *DegradedResponder,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		sessions:     sessions,
		agent:        agent,
		degraded:     degraded,
		logger:       logger,
		conversation: entities.NewConversation(),
		subscribers:  make(map[int]func(entities.ConversationMessage)),
	}
}

// Subscribe registers a callback invoked with a snapshot of every message
// update, in publish order. The returned function removes the subscription.
func (s *ConversationService) Subscribe(fn func(entities.ConversationMessage)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Messages returns a snapshot of the conversation so far.
func (s *ConversationService) Messages() []entities.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Messages()
}

// InFlight reports whether an assistant reply is currently streaming.
func (s *ConversationService) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.InFlight()
}

// StartNewSession discards the current session, creates a fresh one and
// records a system notice in the transcript.
func (s *ConversationService) StartNewSession(ctx context.Context) *entities.Session {
	session := s.sessions.CreateNewSession(ctx)

	s.mu.Lock()
	notice := entities.NewSystemMessage("New session started")
	s.conversation.Append(notice)
	s.mu.Unlock()

	s.publish(*notice)
	return session
}

// Send submits one user message and streams the assistant reply to
// completion, returning the finalized assistant text. It returns
// entities.ErrResponseInFlight if a previous reply is still streaming.
func (s *ConversationService) Send(ctx context.Context, text string) (string, error) {
	return s.SendWithUpdates(ctx, text, nil)
}

// SendWithUpdates is Send with a per-turn observer. The observer receives
// every update of this turn's user and assistant messages, and nothing from
// messages published by other sources, so a caller streaming one turn to a
// client never interleaves unrelated updates. A nil observer is allowed.
func (s *ConversationService) SendWithUpdates(
	ctx context.Context,
	text string,
	observe func(entities.ConversationMessage),
) (string, error) {
	session := s.sessions.EnsureSession(ctx)

	s.mu.Lock()
	user, assistant, err := s.conversation.BeginTurn(text)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	s.emit(observe, *user)
	s.emit(observe, *assistant)

	stream, err := s.openStream(ctx, session, text)
	if err != nil {
		message := fmt.Sprintf("Error: %v", err)
		s.finalize(observe, assistant, message)
		return "", err
	}
	defer stream.Close()

	return s.accumulate(observe, assistant, stream)
}

// openStream picks the reply source for this turn. Fallback sessions go
// straight to the degraded responder; remote sessions try the agent first
// and degrade only when it reports itself unreachable.
func (s *ConversationService) openStream(
	ctx context.Context,
	session *entities.Session,
	text string,
) (repositories.DeltaStream, error) {
	if session.IsFallback() {
		return s.degraded.Respond(ctx, text), nil
	}

	stream, err := s.agent.StreamMessage(ctx, session.ID, text)
	if err != nil {
		if errors.Is(err, repositories.ErrAgentUnreachable) {
			s.logger.Warn("Agent unreachable, switching to degraded response",
				zap.String("sessionID", session.ID),
				zap.Error(err))
			return s.degraded.Respond(ctx, text), nil
		}
		return nil, err
	}
	return stream, nil
}

func (s *ConversationService) accumulate(
	observe func(entities.ConversationMessage),
	assistant *entities.ConversationMessage,
	stream repositories.DeltaStream,
) (string, error) {
	var running strings.Builder
	for {
		delta, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				final := running.String()
				s.finalize(observe, assistant, final)
				return final, nil
			}
			s.logger.Error("Response stream failed", zap.Error(err))
			s.finalize(observe, assistant, fmt.Sprintf("Error: %v", err))
			return "", err
		}
		if delta == "" {
			continue
		}

		running.WriteString(delta)

		s.mu.Lock()
		assistant.ReplaceContent(running.String())
		snapshot := *assistant
		s.mu.Unlock()

		s.emit(observe, snapshot)
	}
}

func (s *ConversationService) finalize(
	observe func(entities.ConversationMessage),
	assistant *entities.ConversationMessage,
	text string,
) {
	s.mu.Lock()
	assistant.Finalize(text)
	snapshot := *assistant
	s.mu.Unlock()

	s.emit(observe, snapshot)
}

// emit publishes to every subscriber and then to the per-turn observer.
func (s *ConversationService) emit(
	observe func(entities.ConversationMessage),
	message entities.ConversationMessage,
) {
	s.publish(message)
	if observe != nil {
		observe(message)
	}
}

func (s *ConversationService) publish(message entities.ConversationMessage) {
	s.mu.Lock()
	fns := make([]func(entities.ConversationMessage), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(message)
	}
}
