package agent

import (
	"io"

	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/repositories"
)

// deltaStream adapts a framed response body into the DeltaStream contract.
type deltaStream struct {
	frames *FrameReader
	body   io.Closer
	logger *zap.Logger
}

var _ repositories.DeltaStream = (*deltaStream)(nil)

// NewDeltaStream reads frames from body, extracts their text deltas and
// skips frames that carry nothing. Malformed frames are logged and skipped;
// a bad frame never aborts the stream.
func NewDeltaStream(body io.ReadCloser, logger *zap.Logger) repositories.DeltaStream {
	return &deltaStream{
		frames: NewFrameReader(body),
		body:   body,
		logger: logger,
	}
}

// Recv returns the next non-empty delta, io.EOF at end of stream.
func (s *deltaStream) Recv() (string, error) {
	for {
		line, err := s.frames.Next()
		if err != nil {
			return "", err
		}

		delta, err := ExtractContent([]byte(line))
		if err != nil {
			s.logger.Warn("Skipping malformed stream frame", zap.Error(err))
			continue
		}
		if delta == "" {
			continue
		}
		return delta, nil
	}
}

func (s *deltaStream) Close() error {
	return s.body.Close()
}
