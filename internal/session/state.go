// Package session implements the voice session orchestrator: the state
// machine that wires recognizer, speaker, executor, and chat backend
// together under the anti-echo gate.
package session

// State is the orchestrator's current mode. Owned exclusively by the
// session; adapters only ever observe the listening gate.
type State int

const (
	// Idle means the session is not running.
	Idle State = iota

	// Listening means waiting for a hotword-prefixed command.
	Listening

	// Confirming means a pending command awaits yes/edit/cancel.
	Confirming

	// Executing means the confirmed command is running.
	Executing

	// Speaking means result or prompt audio is playing.
	Speaking

	// Cooldown means playback finished and the gate is waiting to reopen.
	Cooldown

	// ChatListening means waiting for a free-form chat turn.
	ChatListening

	// ChatSpeaking means a chat reply is playing.
	ChatSpeaking
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Confirming:
		return "confirming"
	case Executing:
		return "executing"
	case Speaking:
		return "speaking"
	case Cooldown:
		return "cooldown"
	case ChatListening:
		return "chat_listening"
	case ChatSpeaking:
		return "chat_speaking"
	default:
		return "unknown"
	}
}

// listeningFamily reports whether utterances are consumed in this state.
func (s State) listeningFamily() bool {
	return s == Listening || s == Confirming || s == ChatListening
}
