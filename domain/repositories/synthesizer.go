package repositories

import "context"

// SpeechSynthesizer converts reply text into a stream of audio chunks.
// The channel is closed when synthesis ends.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan []byte, error)
}

// SpeechPlayback plays one synthesized audio stream and returns once
// playback has completed or failed. The voice activation machine is the
// sole owner of the playback channel.
type SpeechPlayback interface {
	Play(ctx context.Context, audio <-chan []byte) error
}
