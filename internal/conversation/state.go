package conversation

// State is the orchestrator's position in the conversation cycle.
type State int

const (
	// StateIdle means no turn is live and the microphone is closed.
	StateIdle State = iota

	// StateListening means mic audio is streaming through the VAD.
	StateListening

	// StateProcessing means a turn started but no output was emitted yet.
	StateProcessing

	// StateSpeaking means the agent's reply is streaming out.
	StateSpeaking

	// StateError is the terminal state after an unrecoverable failure.
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
