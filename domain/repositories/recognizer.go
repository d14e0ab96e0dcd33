package repositories

import (
	"context"
	"errors"
)

var (
	// ErrNoSpeech is the transient silence condition. Callers restart the
	// session silently instead of reporting it.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrRecognitionUnsupported means the capability is entirely absent.
	// The voice subsystem reports unavailability once and stops.
	ErrRecognitionUnsupported = errors.New("speech recognition unsupported")
)

// TranscriptEvent is one fragment emitted by a recognition session.
// Interim fragments carry the text heard so far; a final fragment closes
// out one utterance.
type TranscriptEvent struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// RecognitionSession is one continuous listening session. Recv blocks for
// the next transcript fragment; it returns io.EOF when the session ends and
// should be restarted, ErrNoSpeech for transient silence.
type RecognitionSession interface {
	Recv() (TranscriptEvent, error)
	Close() error
}

// SpeechRecognizer opens recognition sessions. The voice activation machine
// is the sole owner of the sessions it opens.
type SpeechRecognizer interface {
	Listen(ctx context.Context) (RecognitionSession, error)
}
