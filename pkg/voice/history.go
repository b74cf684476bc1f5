// Package voice provides voice-session types and utilities for Nebula.
// history.go implements the bounded conversation memory used in chat mode.
package voice

// DefaultHistoryCapacity is the total number of turns retained, across
// both roles combined.
const DefaultHistoryCapacity = 10

// History is a FIFO ring of conversation turns. When a new turn is
// appended past capacity the oldest turn is evicted, regardless of role.
//
// History is owned exclusively by the session and is not safe for
// concurrent use.
type History struct {
	capacity int
	turns    []Turn
}

// NewHistory creates an empty history. A non-positive capacity falls back
// to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		turns:    make([]Turn, 0, capacity),
	}
}

// Append adds a turn, evicting the oldest one if the ring is full.
func (h *History) Append(role Role, text string) {
	h.turns = append(h.turns, Turn{Role: role, Text: text})
	if len(h.turns) > h.capacity {
		h.turns = h.turns[1:]
	}
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of the retained turns, oldest first.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Clear drops all retained turns.
func (h *History) Clear() {
	h.turns = h.turns[:0]
}
