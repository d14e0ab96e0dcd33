package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/entities"
	"github.com/donnalabs/agentcore/domain/repositories"
)

const defaultCommandWindow = 5 * time.Second

// VoiceMachineConfig carries the tunables of the voice activation loop.
type VoiceMachineConfig struct {
	// CommandWindow is how long the machine waits for a spoken command
	// after the wake phrase before returning to idle.
	CommandWindow time.Duration
}

// VoiceMachine is the always-on voice activation loop. It keeps a
// recognition session running, watches transcripts for the wake phrase,
// captures the spoken command, pushes it through the same send pathway as
// typed messages, and plays back the finalized reply.
//
// The machine is single-threaded: all state transitions happen on the Run
// goroutine, driven by recognizer events and the command timer.
type VoiceMachine struct {
	recognizer   repositories.SpeechRecognizer
	conversation *ConversationService
	synthesizer  repositories.SpeechSynthesizer
	playback     repositories.SpeechPlayback
	logger       *zap.Logger
	window       time.Duration

	mu         sync.Mutex
	state      entities.ActivationState
	processing bool
	onState    func(entities.ActivationState)
}

// NewVoiceMachine creates the voice activation loop. Synthesizer and
// playback may be nil, in which case replies are shown but not spoken.
func NewVoiceMachine(
	recognizer repositories.SpeechRecognizer,
	conversation *ConversationService,
	synthesizer repositories.SpeechSynthesizer,
	playback repositories.SpeechPlayback,
	config VoiceMachineConfig,
	logger *zap.Logger,
) *VoiceMachine {
	if config.CommandWindow <= 0 {
		config.CommandWindow = defaultCommandWindow
		logger.Info("Using default command window", zap.Duration("commandWindow", config.CommandWindow))
	}
	return &VoiceMachine{
		recognizer:   recognizer,
		conversation: conversation,
		synthesizer:  synthesizer,
		playback:     playback,
		logger:       logger,
		window:       config.CommandWindow,
		state:        entities.ActivationIdle,
	}
}

// State returns the current activation state.
func (m *VoiceMachine) State() entities.ActivationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Processing reports whether the reentrancy guard is held. The guard is
// held exactly while a captured command is being processed or spoken.
func (m *VoiceMachine) Processing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processing
}

// SetStateListener registers a callback invoked after every state change.
func (m *VoiceMachine) SetStateListener(fn func(entities.ActivationState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = fn
}

// Run drives the activation loop until the context is canceled. The
// recognition session is re-armed whenever it ends, except when the
// recognizer reports the capability as entirely unsupported, in which case
// Run returns the error and voice activation stays off.
func (m *VoiceMachine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		session, err := m.recognizer.Listen(ctx)
		if err != nil {
			if errors.Is(err, repositories.ErrRecognitionUnsupported) {
				m.logger.Error("Speech recognition unavailable, voice activation disabled", zap.Error(err))
				return err
			}
			m.logger.Warn("Recognition session failed to start, retrying", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		err = m.runSession(ctx, session)
		session.Close()
		if err != nil {
			return err
		}
	}
}

type transcriptItem struct {
	event repositories.TranscriptEvent
	err   error
}

// runSession consumes one recognition session to its end. A nil return means
// the session ended and should be re-armed; a non-nil return stops the loop.
func (m *VoiceMachine) runSession(ctx context.Context, session repositories.RecognitionSession) error {
	items := make(chan transcriptItem)
	go func() {
		defer close(items)
		for {
			event, err := session.Recv()
			select {
			case items <- transcriptItem{event: event, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var timer *time.Timer
	var timeout <-chan time.Time
	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timeout = nil
		}
	}
	defer disarm()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timeout:
			// No command arrived inside the window.
			timer = nil
			timeout = nil
			m.logger.Info("Command window elapsed, returning to idle")
			m.transition(entities.ActivationIdle)

		case item, ok := <-items:
			if !ok {
				return nil
			}
			if item.err != nil {
				return m.classifySessionError(item.err)
			}

			switch m.State() {
			case entities.ActivationIdle:
				if !ContainsWakePhrase(item.event.Text) {
					continue
				}
				m.logger.Info("Wake phrase detected")
				m.transition(entities.ActivationActivated)
				timer = time.NewTimer(m.window)
				timeout = timer.C

				// One-breath commands like "hey donna, check stock"
				// skip the wait entirely.
				if item.event.Final {
					if command := StripWakePhrase(item.event.Text); command != "" {
						disarm()
						m.handleCommand(ctx, command)
						drainTranscripts(items)
					}
				}

			case entities.ActivationActivated:
				if !item.event.Final {
					continue
				}
				command := StripWakePhrase(item.event.Text)
				if command == "" {
					continue
				}
				disarm()
				m.handleCommand(ctx, command)
				drainTranscripts(items)
			}
		}
	}
}

// handleCommand runs one captured command through the send pathway and
// speaks the reply. The guard is held from Processing through Speaking and
// released on every exit path.
func (m *VoiceMachine) handleCommand(ctx context.Context, command string) {
	m.transition(entities.ActivationProcessing)
	m.logger.Info("Processing voice command", zap.String("command", command))

	reply, err := m.conversation.Send(ctx, command)
	if err != nil {
		m.logger.Error("Voice command failed", zap.Error(err))
		m.transition(entities.ActivationIdle)
		return
	}

	m.transition(entities.ActivationSpeaking)
	m.speak(ctx, reply)
	m.transition(entities.ActivationIdle)
}

func (m *VoiceMachine) speak(ctx context.Context, text string) {
	if m.synthesizer == nil || m.playback == nil || text == "" {
		return
	}

	audio, err := m.synthesizer.Synthesize(ctx, text)
	if err != nil {
		m.logger.Warn("Speech synthesis failed", zap.Error(err))
		return
	}
	if err := m.playback.Play(ctx, audio); err != nil {
		m.logger.Warn("Speech playback failed", zap.Error(err))
	}
}

// classifySessionError decides whether a session-ending error stops the
// loop. Transient no-speech endings and plain stream closure restart
// silently; only an unsupported recognizer stops voice activation.
func (m *VoiceMachine) classifySessionError(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case errors.Is(err, repositories.ErrNoSpeech):
		return nil
	case errors.Is(err, repositories.ErrRecognitionUnsupported):
		m.logger.Error("Speech recognition unavailable, voice activation disabled", zap.Error(err))
		return err
	default:
		m.logger.Warn("Recognition session ended with error, restarting", zap.Error(err))
		return nil
	}
}

func (m *VoiceMachine) transition(next entities.ActivationState) {
	m.mu.Lock()
	if !m.state.CanTransition(next) {
		m.logger.Warn("Ignoring invalid activation transition",
			zap.String("from", string(m.state)),
			zap.String("to", string(next)))
		m.mu.Unlock()
		return
	}
	m.state = next
	m.processing = next == entities.ActivationProcessing || next == entities.ActivationSpeaking
	cb := m.onState
	m.mu.Unlock()

	if cb != nil {
		cb(next)
	}
}

// drainTranscripts discards fragments that queued up while a command was
// being processed, so stale speech cannot trigger a second activation.
func drainTranscripts(items chan transcriptItem) {
	for {
		select {
		case _, ok := <-items:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
