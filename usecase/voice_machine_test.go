package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/donnalabs/agentcore/domain/entities"
	"github.com/donnalabs/agentcore/domain/repositories"
)

type stubEvent struct {
	event repositories.TranscriptEvent
	err   error
}

// stubSession delivers scripted events pushed by the test.
type stubSession struct {
	events chan stubEvent
}

func newStubSession() *stubSession {
	return &stubSession{events: make(chan stubEvent, 16)}
}

func (s *stubSession) partial(text string) {
	s.events <- stubEvent{event: repositories.TranscriptEvent{Text: text}}
}

func (s *stubSession) final(text string) {
	s.events <- stubEvent{event: repositories.TranscriptEvent{Text: text, Final: true}}
}

func (s *stubSession) fail(err error) {
	s.events <- stubEvent{err: err}
}

func (s *stubSession) Recv() (repositories.TranscriptEvent, error) {
	item, ok := <-s.events
	if !ok {
		return repositories.TranscriptEvent{}, io.EOF
	}
	if item.err != nil {
		return repositories.TranscriptEvent{}, item.err
	}
	return item.event, nil
}

func (s *stubSession) Close() error { return nil }

// stubRecognizer hands out sessions queued by the test and blocks further
// Listen calls until another one is queued.
type stubRecognizer struct {
	sessions chan repositories.RecognitionSession
}

func newStubRecognizer() *stubRecognizer {
	return &stubRecognizer{sessions: make(chan repositories.RecognitionSession, 4)}
}

func (r *stubRecognizer) Listen(ctx context.Context) (repositories.RecognitionSession, error) {
	select {
	case session := <-r.sessions:
		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type stateLog struct {
	mu      sync.Mutex
	entries []struct {
		state entities.ActivationState
		guard bool
	}
}

func (l *stateLog) observe(machine *VoiceMachine) func(entities.ActivationState) {
	return func(state entities.ActivationState) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.entries = append(l.entries, struct {
			state entities.ActivationState
			guard bool
		}{state, machine.Processing()})
	}
}

func (l *stateLog) states() []entities.ActivationState {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entities.ActivationState, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.state
	}
	return out
}

type voiceFixture struct {
	machine      *VoiceMachine
	recognizer   *stubRecognizer
	conversation *ConversationService
	log          *stateLog
	done         chan error
	cancel       context.CancelFunc
}

// newVoiceFixture wires a machine against the degraded responder, so
// commands complete deterministically without any backend.
func newVoiceFixture(t *testing.T, window time.Duration) *voiceFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	agent := &fakeAgent{createErr: errors.New("connection refused")}
	sessions := NewSessionManager(agent, logger)
	degraded := NewDegradedResponder(-1, logger)
	conversation := NewConversationService(sessions, agent, degraded, logger)

	rec := newStubRecognizer()
	machine := NewVoiceMachine(rec, conversation, nil, nil, VoiceMachineConfig{CommandWindow: window}, logger)

	log := &stateLog{}
	machine.SetStateListener(log.observe(machine))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- machine.Run(ctx); close(done) }()

	f := &voiceFixture{
		machine:      machine,
		recognizer:   rec,
		conversation: conversation,
		log:          log,
		done:         done,
		cancel:       cancel,
	}
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("voice machine did not stop")
		}
	})
	return f
}

func (f *voiceFixture) waitState(t *testing.T, want entities.ActivationState) {
	t.Helper()
	waitFor(t, func() bool { return f.machine.State() == want })
}

// waitLogged waits until the state listener has observed want, which is
// needed when the machine both starts and ends a sequence in the same state.
func (f *voiceFixture) waitLogged(t *testing.T, want entities.ActivationState) {
	t.Helper()
	waitFor(t, func() bool {
		for _, s := range f.log.states() {
			if s == want {
				return true
			}
		}
		return false
	})
}

func TestWakeVariantsActivate(t *testing.T) {
	for _, variant := range wakeVariants {
		t.Run(variant, func(t *testing.T) {
			f := newVoiceFixture(t, time.Minute)
			session := newStubSession()
			f.recognizer.sessions <- session

			session.partial("so anyway " + variant + " are you there")
			f.waitState(t, entities.ActivationActivated)
		})
	}
}

func TestUnrelatedSpeechStaysIdle(t *testing.T) {
	f := newVoiceFixture(t, time.Minute)
	session := newStubSession()
	f.recognizer.sessions <- session

	session.partial("what are the stock levels")
	session.final("what are the stock levels")

	time.Sleep(50 * time.Millisecond)
	if state := f.machine.State(); state != entities.ActivationIdle {
		t.Errorf("state = %q, want idle", state)
	}
	if f.machine.Processing() {
		t.Error("guard held while idle")
	}
}

func TestCommandWindowTimeout(t *testing.T) {
	f := newVoiceFixture(t, 50*time.Millisecond)
	session := newStubSession()
	f.recognizer.sessions <- session

	session.partial("hey donna")
	f.waitState(t, entities.ActivationActivated)

	// No command arrives; the window elapses exactly once.
	f.waitState(t, entities.ActivationIdle)
	time.Sleep(100 * time.Millisecond)

	states := f.log.states()
	var idleReturns int
	for _, s := range states {
		if s == entities.ActivationIdle {
			idleReturns++
		}
	}
	if idleReturns != 1 {
		t.Errorf("returned to idle %d times, want exactly once (states: %v)", idleReturns, states)
	}

	// The machine re-arms cleanly after the timeout.
	session.partial("hey donna")
	f.waitState(t, entities.ActivationActivated)
}

func TestEmptyRemainderKeepsWaiting(t *testing.T) {
	f := newVoiceFixture(t, time.Minute)
	session := newStubSession()
	f.recognizer.sessions <- session

	session.final("hey donna")
	f.waitState(t, entities.ActivationActivated)

	// Wake phrase alone carries no command; the machine keeps waiting.
	time.Sleep(50 * time.Millisecond)
	if state := f.machine.State(); state != entities.ActivationActivated {
		t.Errorf("state = %q, want activated", state)
	}

	session.final("check stock for chairs")
	f.waitState(t, entities.ActivationIdle)
}

func TestOneBreathCommand(t *testing.T) {
	f := newVoiceFixture(t, time.Minute)
	session := newStubSession()
	f.recognizer.sessions <- session

	session.final("hey donna, check stock for chairs")
	f.waitLogged(t, entities.ActivationIdle)

	messages := f.conversation.Messages()
	if len(messages) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(messages))
	}
	if messages[0].Content != "check stock for chairs" {
		t.Errorf("command = %q", messages[0].Content)
	}
	reply := messages[1]
	if !reply.Complete || !strings.Contains(reply.Content, "Office Chairs") {
		t.Errorf("reply %+v, want completed stock notice", reply)
	}

	want := []entities.ActivationState{
		entities.ActivationActivated,
		entities.ActivationProcessing,
		entities.ActivationSpeaking,
		entities.ActivationIdle,
	}
	states := f.log.states()
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d = %q, want %q", i, states[i], want[i])
		}
	}
}

func TestGuardHeldExactlyWhileProcessingOrSpeaking(t *testing.T) {
	f := newVoiceFixture(t, time.Minute)
	session := newStubSession()
	f.recognizer.sessions <- session

	session.final("hey donna check stock")
	f.waitLogged(t, entities.ActivationIdle)

	f.log.mu.Lock()
	defer f.log.mu.Unlock()
	for _, entry := range f.log.entries {
		wantGuard := entry.state == entities.ActivationProcessing || entry.state == entities.ActivationSpeaking
		if entry.guard != wantGuard {
			t.Errorf("state %q observed with guard %v", entry.state, entry.guard)
		}
	}
}

func TestNoSpeechRestartsSilently(t *testing.T) {
	f := newVoiceFixture(t, time.Minute)

	first := newStubSession()
	second := newStubSession()
	f.recognizer.sessions <- first
	f.recognizer.sessions <- second

	first.fail(repositories.ErrNoSpeech)

	// The loop re-arms with the next session and keeps listening.
	second.partial("hey donna")
	f.waitState(t, entities.ActivationActivated)
}

func TestUnsupportedRecognizerStopsLoop(t *testing.T) {
	f := newVoiceFixture(t, time.Minute)
	session := newStubSession()
	f.recognizer.sessions <- session

	session.fail(repositories.ErrRecognitionUnsupported)

	select {
	case err := <-f.done:
		if !errors.Is(err, repositories.ErrRecognitionUnsupported) {
			t.Errorf("Run() error = %v, want ErrRecognitionUnsupported", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop on unsupported recognizer")
	}
}
