package repositories

import (
	"context"
	"errors"
)

// ErrAgentUnreachable marks connection-level failures against the agent
// service, before any reply data arrived. The send pathway reacts by
// switching to the degraded responder instead of surfacing an error.
var ErrAgentUnreachable = errors.New("agent service unreachable")

// DeltaStream is the ordered sequence of text deltas carried by one agent
// reply. Recv blocks for the next non-empty delta and returns io.EOF when
// the stream ends cleanly; any other error means the reply was cut short.
type DeltaStream interface {
	Recv() (string, error)
	Close() error
}

// AgentService abstracts the remote conversational agent. The degraded
// responder implements the same contract so the accumulator cannot tell
// the two apart.
type AgentService interface {
	// CreateSession asks the service for a new opaque session identifier.
	CreateSession(ctx context.Context) (string, error)
	// StreamMessage sends one user message under the given session and
	// returns the reply as a lazy delta stream.
	StreamMessage(ctx context.Context, sessionID string, content string) (DeltaStream, error)
}
