package speaker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/nebula/pkg/voice"
)

// Config holds the speaker's gate timing.
type Config struct {
	// Cooldown is how long the microphone stays gated after playback
	// finishes, covering room echo and the player's buffer tail.
	Cooldown time.Duration

	// PostSpeechDelay is a short settle pause after playback before the
	// cooldown starts counting.
	PostSpeechDelay time.Duration
}

// DefaultConfig returns the stock gate timing.
func DefaultConfig() Config {
	return Config{
		Cooldown:        1200 * time.Millisecond,
		PostSpeechDelay: 300 * time.Millisecond,
	}
}

// Speaker sanitizes and speaks assistant text through an ordered chain of
// synthesis backends, closing the listening gate for the duration of
// playback so the assistant never transcribes its own voice. The gate is
// rescheduled to reopen on every exit path, including synthesis failure;
// a speaker error must never leave the session deaf.
type Speaker struct {
	config    Config
	gate      *voice.ListeningGate
	sanitizer *Sanitizer
	backends  []Backend

	// preferred is the index of the last backend that worked, so a dead
	// primary is not retried ahead of a healthy fallback each turn.
	// available caches the construction-time probe; a backend is
	// re-probed only after it fails.
	mu        sync.Mutex
	preferred int
	available []bool

	spokenCount atomic.Int64
	failures    atomic.Int64
}

// probeTimeout bounds the construction-time availability probe.
const probeTimeout = 2 * time.Second

// New creates a speaker over the given backend chain, tried in order.
// Each backend's availability is probed once here.
func New(config Config, gate *voice.ListeningGate, backends ...Backend) *Speaker {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultConfig().Cooldown
	}
	s := &Speaker{
		config:    config,
		gate:      gate,
		sanitizer: NewSanitizer(),
		backends:  backends,
		available: make([]bool, len(backends)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	s.probeAll(ctx)
	return s
}

// Speak sanitizes the text, gates the microphone, and plays the speech.
// It blocks until playback completes. Returns ErrUnavailable when every
// backend fails; the gate still reopens after the cooldown.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	clean := s.sanitizer.Sanitize(text)
	if clean == "" {
		log.Debug().Msg("nothing audible after sanitizing, skipping speech")
		return nil
	}

	s.gate.Close()
	defer func() {
		s.settle(ctx)
		s.gate.ScheduleReopen(s.config.Cooldown)
	}()

	start := s.preferredIndex()
	attempted := false
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < len(s.backends); i++ {
			idx := (start + i) % len(s.backends)
			backend := s.backends[idx]

			if !s.isAvailable(idx) {
				continue
			}
			attempted = true

			if err := backend.Speak(ctx, clean); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.failures.Add(1)
				log.Warn().
					Err(err).
					Str("backend", backend.Name()).
					Msg("synthesis backend failed, trying next")
				// Refresh the cached probe so a dead backend is skipped
				// next turn.
				s.setAvailable(idx, backend.Available(ctx))
				continue
			}

			s.setPreferred(idx)
			s.spokenCount.Add(1)
			return nil
		}

		if attempted {
			break
		}
		// The whole chain is cached unavailable; one fresh probe before
		// giving up, in case a backend came back.
		s.probeAll(ctx)
	}

	return ErrUnavailable
}

// Spoken returns how many utterances have been successfully spoken.
func (s *Speaker) Spoken() int64 { return s.spokenCount.Load() }

// Failures returns how many backend attempts have failed.
func (s *Speaker) Failures() int64 { return s.failures.Load() }

func (s *Speaker) preferredIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preferred >= len(s.backends) {
		return 0
	}
	return s.preferred
}

func (s *Speaker) setPreferred(i int) {
	s.mu.Lock()
	s.preferred = i
	s.mu.Unlock()
}

func (s *Speaker) probeAll(ctx context.Context) {
	for i, backend := range s.backends {
		ok := backend.Available(ctx)
		if !ok {
			log.Debug().Str("backend", backend.Name()).Msg("synthesis backend unavailable")
		}
		s.setAvailable(i, ok)
	}
}

func (s *Speaker) isAvailable(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available[i]
}

func (s *Speaker) setAvailable(i int, ok bool) {
	s.mu.Lock()
	s.available[i] = ok
	s.mu.Unlock()
}

// settle waits the post-speech delay, letting the echo tail decay before
// the reopen clock starts.
func (s *Speaker) settle(ctx context.Context) {
	if s.config.PostSpeechDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.config.PostSpeechDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
