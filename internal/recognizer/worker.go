package recognizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/nebula/pkg/voice"
)

// Worker runs the recognizer in a dedicated goroutine so a blocking
// capture never stalls the session's state transitions or shutdown. It
// hands utterances over an unbuffered channel: an utterance produced
// while the session is busy elsewhere is dropped on the spot, never
// queued for the session to act on later.
type Worker struct {
	rec    *Recognizer
	out    chan voice.Utterance
	cancel context.CancelFunc
	done   chan struct{}
}

// StartWorker launches the capture loop.
func StartWorker(ctx context.Context, rec *Recognizer) *Worker {
	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		rec:    rec,
		out:    make(chan voice.Utterance),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// Utterances is the stream of transcribed phrases.
func (w *Worker) Utterances() <-chan voice.Utterance {
	return w.out
}

// SetProfile switches the recognizer's active timing profile.
func (w *Worker) SetProfile(p voice.Profile) {
	w.rec.SetProfile(p)
}

// Stop cancels the capture loop and joins it within the given timeout.
func (w *Worker) Stop(timeout time.Duration) error {
	w.cancel()
	select {
	case <-w.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("capture worker did not stop within %s", timeout)
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	for {
		u, err := w.rec.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			switch {
			case errors.Is(err, ErrTimeout):
				// Silence is the steady state; nothing to report.
			case errors.Is(err, ErrTranscriptionFailed):
				log.Warn().Err(err).Msg("transcription failed, continuing to listen")
			default:
				log.Warn().Err(err).Msg("listen error, backing off")
				select {
				case <-time.After(500 * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
			continue
		}

		select {
		case w.out <- u:
		default:
			log.Debug().
				Str("utterance_id", u.ID).
				Msg("session busy, discarding utterance")
		}
	}
}
