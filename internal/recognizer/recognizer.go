// Package recognizer adapts microphone capture and the external
// transcription service into discrete utterances for the voice session.
package recognizer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/nebula/pkg/voice"
)

var (
	// ErrTimeout means no usable speech was heard within the profile's
	// start timeout. Not fatal; the caller simply listens again.
	ErrTimeout = errors.New("recognizer: no speech detected")

	// ErrTranscriptionFailed means the transcription service rejected or
	// failed the request. Not fatal; logged and retried.
	ErrTranscriptionFailed = errors.New("recognizer: transcription failed")
)

// Transcriber converts captured PCM audio into text.
type Transcriber interface {
	// Transcribe converts little-endian 16-bit mono PCM to text.
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Capture owns the microphone. Start opens a capture session streaming
// raw PCM until stopped.
type Capture interface {
	Start(ctx context.Context) (CaptureSession, error)
	// SampleRate is the PCM sample rate the sessions produce.
	SampleRate() int
}

// CaptureSession is a live microphone stream.
type CaptureSession interface {
	io.Reader
	// Stop terminates capture and joins the underlying process.
	Stop() error
}

// frameDuration is the analysis window for energy-based endpointing.
const frameDuration = 30 * time.Millisecond

// Recognizer turns microphone audio into utterances using energy-based
// endpointing and an external transcription service. The active timing
// profile is session state: the session switches it when entering and
// leaving chat dictation, and the capture worker reads it per listen.
type Recognizer struct {
	capture     Capture
	transcriber Transcriber
	gate        *voice.ListeningGate

	mu         sync.RWMutex
	profile    voice.Profile
	noiseFloor float64
	calibrated bool
}

// New creates a recognizer with the balanced profile active.
func New(capture Capture, transcriber Transcriber, gate *voice.ListeningGate) *Recognizer {
	return &Recognizer{
		capture:     capture,
		transcriber: transcriber,
		gate:        gate,
		profile:     voice.BalancedProfile(),
	}
}

// SetProfile switches the active timing profile.
func (r *Recognizer) SetProfile(p voice.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = p
}

// Profile returns the active timing profile.
func (r *Recognizer) Profile() voice.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profile
}

// Calibrate samples roughly a second of ambient audio and derives the
// noise floor used to bias the energy threshold. Called once at session
// start; a failure here is fatal because it means the microphone cannot
// be opened at all.
func (r *Recognizer) Calibrate(ctx context.Context) error {
	sess, err := r.capture.Start(ctx)
	if err != nil {
		return fmt.Errorf("recognizer: ambient calibration: %w", err)
	}
	defer sess.Stop()

	frameBytes := r.frameBytes()
	buf := make([]byte, frameBytes)
	var total float64
	const frames = 33 // ~1s at 30ms frames

	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(sess, buf); err != nil {
			return fmt.Errorf("recognizer: ambient calibration read: %w", err)
		}
		total += rms(buf)
	}

	r.mu.Lock()
	r.noiseFloor = total / frames
	r.calibrated = true
	r.mu.Unlock()

	log.Info().
		Float64("noise_floor", total/frames).
		Msg("ambient noise calibration complete")
	return nil
}

// Listen blocks until the gate is open, captures one phrase and returns
// its transcript. Timing is governed by the active profile.
func (r *Recognizer) Listen(ctx context.Context) (voice.Utterance, error) {
	if err := r.gate.Wait(ctx); err != nil {
		return voice.Utterance{}, err
	}

	profile := r.Profile()

	pcm, err := r.capturePhrase(ctx, profile)
	if err != nil {
		return voice.Utterance{}, err
	}

	// The gate may have closed while audio was in flight (the session
	// started speaking). Whatever was captured is suspect: drop it.
	if !r.gate.IsOpen() {
		log.Debug().Msg("gate closed during capture, discarding audio")
		return voice.Utterance{}, ErrTimeout
	}

	text, err := r.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		if ctx.Err() != nil {
			return voice.Utterance{}, ctx.Err()
		}
		return voice.Utterance{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	if text == "" {
		return voice.Utterance{}, ErrTimeout
	}

	u := voice.NewUtterance(text)
	log.Debug().
		Str("utterance_id", u.ID).
		Str("text", text).
		Msg("utterance transcribed")
	return u, nil
}

// capturePhrase runs energy-based endpointing over the microphone stream:
// wait for speech within StartTimeout, then accumulate until the pause
// threshold of silence or the phrase time limit.
func (r *Recognizer) capturePhrase(ctx context.Context, profile voice.Profile) ([]byte, error) {
	sess, err := r.capture.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer sess.Stop()

	var (
		frameBytes  = r.frameBytes()
		buf         = make([]byte, frameBytes)
		phrase      []byte
		preRoll     [][]byte
		preFrames   = int(profile.NonSpeakingDuration / frameDuration)
		silence     time.Duration
		speechSpan  time.Duration
		speechSeen  bool
		started     = time.Now()
		speechStart time.Time
	)
	if preFrames < 1 {
		preFrames = 1
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(sess, buf); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: capture read: %v", ErrTranscriptionFailed, err)
		}

		isSpeech := rms(buf) >= r.effectiveThreshold(profile)

		if !speechSeen {
			// Keep a short pre-roll so the phrase onset is not clipped.
			frame := make([]byte, frameBytes)
			copy(frame, buf)
			preRoll = append(preRoll, frame)
			if len(preRoll) > preFrames {
				preRoll = preRoll[1:]
			}

			if isSpeech {
				speechSeen = true
				speechStart = time.Now()
				for _, f := range preRoll {
					phrase = append(phrase, f...)
				}
			} else if time.Since(started) > profile.StartTimeout {
				return nil, ErrTimeout
			}
			continue
		}

		phrase = append(phrase, buf...)
		if isSpeech {
			silence = 0
			speechSpan = time.Since(speechStart)
		} else {
			silence += frameDuration
		}

		if silence >= profile.PauseThreshold || time.Since(speechStart) >= profile.PhraseTimeLimit {
			break
		}
	}

	if speechSpan < profile.MinPhraseDuration {
		return nil, ErrTimeout
	}
	return phrase, nil
}

// effectiveThreshold biases the profile's energy threshold by the
// calibrated ambient noise floor.
func (r *Recognizer) effectiveThreshold(profile voice.Profile) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	threshold := float64(profile.EnergyThreshold)
	if r.calibrated && r.noiseFloor*1.5 > threshold {
		threshold = r.noiseFloor * 1.5
	}
	return threshold
}

func (r *Recognizer) frameBytes() int {
	n := int(float64(r.capture.SampleRate()) * frameDuration.Seconds())
	return n * 2 // 16-bit samples
}

// rms computes the root mean square amplitude of S16LE PCM.
func rms(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}
