package recognizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// CaptureConfig controls the microphone capture subprocess.
type CaptureConfig struct {
	// Command is the capture binary: "ffmpeg" or "arecord".
	Command string

	// InputFormat is the ffmpeg input demuxer ("pulse", "alsa",
	// "avfoundation"). Ignored by arecord.
	InputFormat string

	// Device is the capture device name.
	Device string

	// SampleRate is the PCM sample rate in Hz.
	SampleRate int
}

// DefaultCaptureConfig returns the stock capture configuration.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Command:     "ffmpeg",
		InputFormat: "pulse",
		Device:      "default",
		SampleRate:  16000,
	}
}

// ExecCapture streams microphone PCM from an ffmpeg or arecord
// subprocess. The binary is probed once at construction; a missing
// binary is a fatal session error.
type ExecCapture struct {
	config CaptureConfig
}

// NewExecCapture validates the capture binary and returns the capture.
func NewExecCapture(config CaptureConfig) (*ExecCapture, error) {
	if config.Command == "" {
		config.Command = "ffmpeg"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.InputFormat == "" {
		config.InputFormat = "pulse"
	}
	if config.Device == "" {
		config.Device = "default"
	}

	if _, err := exec.LookPath(config.Command); err != nil {
		return nil, fmt.Errorf("capture binary %q not found: %w", config.Command, err)
	}
	return &ExecCapture{config: config}, nil
}

// SampleRate returns the configured PCM sample rate.
func (c *ExecCapture) SampleRate() int {
	return c.config.SampleRate
}

// Start launches the capture subprocess and verifies it survives startup.
func (c *ExecCapture) Start(ctx context.Context) (CaptureSession, error) {
	cmd := exec.CommandContext(ctx, c.config.Command, c.args()...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.config.Command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Give the process a moment to fail on a bad device before we commit.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%s exited before capture started: %w: %s",
				c.config.Command, err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, fmt.Errorf("%s exited before capture started", c.config.Command)
	case <-time.After(200 * time.Millisecond):
	}

	log.Debug().
		Str("command", c.config.Command).
		Str("device", c.config.Device).
		Int("sample_rate", c.config.SampleRate).
		Msg("microphone capture started")

	return &execSession{
		stdout:  stdout,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// args builds the subprocess argument list for S16LE mono PCM on stdout.
func (c *ExecCapture) args() []string {
	if c.config.Command == "arecord" {
		return []string{
			"-q",
			"-D", c.config.Device,
			"-c", "1",
			"-r", strconv.Itoa(c.config.SampleRate),
			"-f", "S16_LE",
			"-t", "raw",
		}
	}
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", c.config.InputFormat,
		"-i", c.config.Device,
		"-ac", "1",
		"-ar", strconv.Itoa(c.config.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type execSession struct {
	stdout  io.ReadCloser
	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *execSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Stop interrupts the subprocess and joins it, escalating to SIGKILL if
// it does not exit within a short bound.
func (s *execSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err := <-s.waitErr:
			s.stopErr = ignoreExit(err)
		case <-time.After(time.Second):
			if s.process != nil {
				_ = s.process.Kill()
			}
			s.stopErr = ignoreExit(<-s.waitErr)
		}

		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = err
		}
	})
	return s.stopErr
}

// ignoreExit drops the expected non-zero exit from an interrupted capture.
func ignoreExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
