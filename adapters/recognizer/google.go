package recognizer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/repositories"
)

const (
	defaultSampleRate = 16000
	defaultLanguage   = "en-US"
	defaultEncoding   = "LINEAR16"
)

// GoogleConfig holds the recognition settings for Google Cloud Speech.
type GoogleConfig struct {
	SampleRate int
	Language   string
	Encoding   string
}

// NewGoogleConfigFromEnv creates configuration from environment variables.
func NewGoogleConfigFromEnv() GoogleConfig {
	config := GoogleConfig{
		Language: os.Getenv("SPEECH_LANGUAGE"),
		Encoding: os.Getenv("SPEECH_ENCODING"),
	}
	if raw := os.Getenv("SPEECH_SAMPLE_RATE"); raw != "" {
		if rate, err := strconv.Atoi(raw); err == nil {
			config.SampleRate = rate
		}
	}
	return config
}

// ValidateGoogleConfig checks the configuration and rejects encodings the
// recognizer cannot handle.
func ValidateGoogleConfig(config GoogleConfig) error {
	if config.Encoding != "" {
		if _, err := audioEncoding(config.Encoding); err != nil {
			return err
		}
	}
	if config.SampleRate < 0 {
		return fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	return nil
}

// GoogleRecognizer opens continuous streaming recognition sessions against
// Google Cloud Speech-to-Text. Audio is delivered to the active session by
// whoever owns the microphone transport, through Feed on the session.
type GoogleRecognizer struct {
	config GoogleConfig
	logger *zap.Logger
}

var _ repositories.SpeechRecognizer = (*GoogleRecognizer)(nil)

// NewGoogleRecognizer creates a Google Cloud speech recognizer.
func NewGoogleRecognizer(config GoogleConfig, logger *zap.Logger) (*GoogleRecognizer, error) {
	if err := ValidateGoogleConfig(config); err != nil {
		return nil, err
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaultSampleRate
		logger.Info("Using default sample rate", zap.Int("sampleRate", config.SampleRate))
	}
	if config.Language == "" {
		config.Language = defaultLanguage
		logger.Info("Using default language", zap.String("language", config.Language))
	}
	if config.Encoding == "" {
		config.Encoding = defaultEncoding
		logger.Info("Using default encoding", zap.String("encoding", config.Encoding))
	}
	return &GoogleRecognizer{
		config: config,
		logger: logger,
	}, nil
}

// Listen opens one continuous recognition session. Interim results are
// requested so wake-phrase scanning can react before an utterance completes.
func (g *GoogleRecognizer) Listen(ctx context.Context) (repositories.RecognitionSession, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrRecognitionUnsupported, err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(g.config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(g.config.SampleRate),
					LanguageCode:    g.config.Language,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	return &googleSession{
		client: client,
		stream: stream,
		logger: g.logger,
	}, nil
}

type googleSession struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Feed sends one chunk of microphone audio into the recognition stream.
func (s *googleSession) Feed(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("recognition session closed")
	}

	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// EndAudio closes the send side, letting recognition flush its last results.
func (s *googleSession) EndAudio() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.stream.CloseSend()
}

// Recv returns the next transcript fragment. Interim results surface with
// Final false; the best alternative of a final result closes the utterance.
func (s *googleSession) Recv() (repositories.TranscriptEvent, error) {
	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return repositories.TranscriptEvent{}, io.EOF
		}
		if err != nil {
			if isNoSpeech(err) {
				return repositories.TranscriptEvent{}, repositories.ErrNoSpeech
			}
			return repositories.TranscriptEvent{}, fmt.Errorf("failed to receive response: %w", err)
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			return repositories.TranscriptEvent{
				Text:  result.Alternatives[0].Transcript,
				Final: result.IsFinal,
			}, nil
		}
	}
}

func (s *googleSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.CloseSend()
	return s.client.Close()
}

func isNoSpeech(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no speech")
}

// audioEncoding converts the configured encoding name to the API enum.
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
