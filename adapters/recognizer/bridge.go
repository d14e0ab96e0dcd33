package recognizer

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/repositories"
)

// Bridge adapts transcript and audio traffic arriving over the dashboard
// websocket into recognition sessions. Browsers that run recognition
// locally push ready-made transcript events; browsers that stream raw
// microphone audio have it forwarded into a Google session when one is
// configured.
//
// At most one session is live at a time; opening a new one ends the
// previous session.
type Bridge struct {
	google *GoogleRecognizer
	logger *zap.Logger

	mu      sync.Mutex
	current *bridgeSession
}

var _ repositories.SpeechRecognizer = (*Bridge)(nil)

// NewBridge creates a websocket-fed recognizer. google may be nil, in which
// case only browser-side transcripts are supported.
func NewBridge(google *GoogleRecognizer, logger *zap.Logger) *Bridge {
	return &Bridge{
		google: google,
		logger: logger,
	}
}

// Listen opens a new recognition session fed by PushTranscript and
// PushAudio.
func (b *Bridge) Listen(ctx context.Context) (repositories.RecognitionSession, error) {
	session := &bridgeSession{
		ctx:    ctx,
		events: make(chan bridgeItem, 16),
	}

	if b.google != nil {
		upstream, err := b.google.Listen(ctx)
		if err != nil {
			return nil, err
		}
		google, ok := upstream.(*googleSession)
		if !ok {
			upstream.Close()
		} else {
			session.google = google
			go pumpGoogle(google, session)
		}
	}

	b.mu.Lock()
	previous := b.current
	b.current = session
	b.mu.Unlock()

	if previous != nil {
		previous.end(io.EOF)
	}
	return session, nil
}

// PushTranscript delivers one browser-side transcript fragment to the live
// session. Fragments arriving with no session open are dropped.
func (b *Bridge) PushTranscript(event repositories.TranscriptEvent) {
	session := b.live()
	if session == nil {
		b.logger.Debug("Dropping transcript, no recognition session open")
		return
	}
	session.push(bridgeItem{event: event})
}

// PushAudio forwards one chunk of microphone audio into the Google session,
// when one backs the live session.
func (b *Bridge) PushAudio(data []byte) {
	session := b.live()
	if session == nil || session.google == nil {
		return
	}
	if err := session.google.Feed(data); err != nil {
		b.logger.Warn("Failed to forward audio chunk", zap.Error(err))
	}
}

// EndSession ends the live session with the given terminal error. A nil err
// ends it cleanly, which the voice loop treats as a restart.
func (b *Bridge) EndSession(err error) {
	session := b.live()
	if session == nil {
		return
	}
	if err == nil {
		err = io.EOF
	}
	session.end(err)
}

func (b *Bridge) live() *bridgeSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

type bridgeItem struct {
	event repositories.TranscriptEvent
	err   error
}

type bridgeSession struct {
	ctx    context.Context
	events chan bridgeItem
	google *googleSession

	mu     sync.Mutex
	closed bool
}

func (s *bridgeSession) push(item bridgeItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- item:
	default:
		// A stalled consumer sheds traffic rather than blocking the
		// websocket read loop.
	}
}

func (s *bridgeSession) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.google != nil {
		s.google.Close()
	}
	select {
	case s.events <- bridgeItem{err: err}:
	default:
	}
	close(s.events)
}

func (s *bridgeSession) Recv() (repositories.TranscriptEvent, error) {
	select {
	case <-s.ctx.Done():
		return repositories.TranscriptEvent{}, s.ctx.Err()
	case item, ok := <-s.events:
		if !ok {
			return repositories.TranscriptEvent{}, io.EOF
		}
		if item.err != nil {
			return repositories.TranscriptEvent{}, item.err
		}
		return item.event, nil
	}
}

func (s *bridgeSession) Close() error {
	s.end(io.EOF)
	return nil
}

// pumpGoogle surfaces server-side recognition results through the same
// session the browser transcripts use.
func pumpGoogle(google *googleSession, session *bridgeSession) {
	for {
		event, err := google.Recv()
		if err != nil {
			session.end(err)
			return
		}
		session.push(bridgeItem{event: event})
	}
}
