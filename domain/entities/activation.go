package entities

// ActivationState is the single mode of the voice activation pipeline.
// Exactly one value is active at any instant.
type ActivationState string

const (
	// ActivationIdle listens continuously for the wake phrase.
	ActivationIdle ActivationState = "idle"
	// ActivationActivated captured the wake phrase and awaits a command.
	ActivationActivated ActivationState = "activated"
	// ActivationProcessing has a command in flight against the agent.
	ActivationProcessing ActivationState = "processing"
	// ActivationSpeaking plays back the synthesized reply.
	ActivationSpeaking ActivationState = "speaking"
)

// Valid reports whether s is one of the four defined states.
func (s ActivationState) Valid() bool {
	switch s {
	case ActivationIdle, ActivationActivated, ActivationProcessing, ActivationSpeaking:
		return true
	}
	return false
}

// CanTransition reports whether the machine may move from s to next.
// The table is the whole contract: wake word arms the timer, a captured
// command or the timer leaves Activated, Processing ends in Speaking on
// success or Idle on failure, Speaking always returns to Idle.
func (s ActivationState) CanTransition(next ActivationState) bool {
	switch s {
	case ActivationIdle:
		return next == ActivationActivated
	case ActivationActivated:
		return next == ActivationProcessing || next == ActivationIdle
	case ActivationProcessing:
		return next == ActivationSpeaking || next == ActivationIdle
	case ActivationSpeaking:
		return next == ActivationIdle
	}
	return false
}
