// Package voice provides voice-session types and utilities for Nebula.
// gate.go implements the listening gate that keeps the microphone and the
// speaker from being logically open at the same time.
package voice

import (
	"context"
	"sync"
	"time"
)

// ListeningGate is the single shared synchronization point between the
// capture worker and the session. While the gate is closed the recognizer
// must not consume microphone input; the session and the speaker are the
// only writers.
//
// The gate carries a reopen-not-before deadline: ScheduleReopen closes the
// window for a cooldown period after playback so the system does not
// transcribe the tail of its own speech.
type ListeningGate struct {
	mu       sync.Mutex
	closed   bool
	reopenAt time.Time
	waitCh   chan struct{}
	timer    *time.Timer
}

// NewListeningGate creates a gate in the open state.
func NewListeningGate() *ListeningGate {
	return &ListeningGate{
		waitCh: make(chan struct{}),
	}
}

// Close closes the gate. Any pending scheduled reopen is cancelled; the
// gate stays closed until ScheduleReopen or ForceOpen.
func (g *ListeningGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.closed = true
}

// ScheduleReopen arranges for the gate to reopen no earlier than now plus
// the given cooldown. A zero or negative cooldown reopens immediately.
// Calling it again replaces any previously scheduled reopen.
func (g *ListeningGate) ScheduleReopen(cooldown time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}

	if !g.closed {
		return
	}

	g.reopenAt = time.Now().Add(cooldown)
	if cooldown <= 0 {
		g.openLocked()
		return
	}

	g.timer = time.AfterFunc(cooldown, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.timer = nil
		g.openLocked()
	})
}

// ForceOpen opens the gate immediately, discarding any scheduled reopen.
// Used on shutdown so the gate can never end up stuck closed.
func (g *ListeningGate) ForceOpen() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.reopenAt = time.Time{}
	g.openLocked()
}

// openLocked opens the gate and wakes all waiters. Caller must hold mu.
func (g *ListeningGate) openLocked() {
	if !g.closed {
		return
	}
	g.closed = false
	close(g.waitCh)
	g.waitCh = make(chan struct{})
}

// IsOpen reports whether capture is currently allowed.
func (g *ListeningGate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.closed
}

// ReopenNotBefore returns the earliest instant the gate may reopen. The
// zero time means no reopen is scheduled.
func (g *ListeningGate) ReopenNotBefore() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reopenAt
}

// Wait blocks until the gate is open or the context is done.
func (g *ListeningGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.closed {
			g.mu.Unlock()
			return nil
		}
		ch := g.waitCh
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
