package turn

// State is the phase of the turn-taking cycle. Exactly one value holds
// at any instant; it is owned solely by the coordinator's state machine.
type State int

const (
	StateIdle State = iota
	StateArming
	StateListening
	StateCapturingSpeech
	StateEncoding
	StateDispatching
	StateAwaitingResponse
	StateSpeaking
	StatePaused
	StateError
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateArming:
		return "ARMING"
	case StateListening:
		return "LISTENING"
	case StateCapturingSpeech:
		return "CAPTURING_SPEECH"
	case StateEncoding:
		return "ENCODING"
	case StateDispatching:
		return "DISPATCHING"
	case StateAwaitingResponse:
		return "AWAITING_RESPONSE"
	case StateSpeaking:
		return "SPEAKING"
	case StatePaused:
		return "PAUSED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
