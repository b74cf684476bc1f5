// Package voice provides voice-session types and utilities for Nebula.
package voice

import (
	"time"

	"github.com/google/uuid"
)

// Utterance is a single transcribed phrase produced by the recognizer.
// Utterances are transient: each one is consumed exactly once by the session.
type Utterance struct {
	// ID uniquely identifies this utterance across log events.
	ID string

	// Text is the raw transcript as returned by the transcription service.
	Text string

	// ReceivedAt is when transcription completed.
	ReceivedAt time.Time
}

// NewUtterance creates an utterance stamped with the current time.
func NewUtterance(text string) Utterance {
	return Utterance{
		ID:         uuid.NewString(),
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks a turn spoken by the user.
	RoleUser Role = "user"

	// RoleAssistant marks a turn produced by the chat backend.
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a chat conversation.
type Turn struct {
	Role Role
	Text string
}
