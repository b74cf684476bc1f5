package speaker

import (
	"context"
	"errors"
)

// ErrUnavailable means no synthesis backend could produce audio.
var ErrUnavailable = errors.New("speaker: no synthesis backend available")

// Backend is a single text-to-speech implementation. Backends block until
// playback has finished; the caller owns echo gating around the call.
type Backend interface {
	// Name identifies the backend in logs and health output.
	Name() string

	// Available reports whether the backend can currently synthesize.
	// Called before each attempt; implementations should keep it cheap.
	Available(ctx context.Context) bool

	// Speak synthesizes and plays the text, returning once audio output
	// has completed.
	Speak(ctx context.Context, text string) error
}
