package speaker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// CommandConfig configures the local synthesis command fallback.
type CommandConfig struct {
	// Command is the synthesis binary ("espeak-ng", "espeak", "say").
	Command string

	// Rate is the speaking rate in words per minute; 0 uses the stock
	// rate.
	Rate int
}

// DefaultCommandConfig returns the stock espeak-ng fallback.
func DefaultCommandConfig() CommandConfig {
	return CommandConfig{Command: "espeak-ng", Rate: 175}
}

// CommandBackend speaks through a local synthesis binary. It is the
// fallback when the HTTP backend is down: lower quality, but it keeps
// the assistant audible.
type CommandBackend struct {
	config CommandConfig
	path   string
}

// NewCommandBackend resolves the synthesis binary; a missing binary is
// not fatal, the backend just reports itself unavailable.
func NewCommandBackend(config CommandConfig) *CommandBackend {
	if config.Command == "" {
		config.Command = DefaultCommandConfig().Command
	}
	if config.Rate == 0 {
		config.Rate = DefaultCommandConfig().Rate
	}
	path, err := exec.LookPath(config.Command)
	if err != nil {
		log.Warn().
			Str("command", config.Command).
			Msg("fallback synthesis binary not found in PATH")
		path = ""
	}
	return &CommandBackend{config: config, path: path}
}

// Name implements Backend.
func (b *CommandBackend) Name() string { return b.config.Command }

// Available implements Backend.
func (b *CommandBackend) Available(ctx context.Context) bool {
	return b.path != ""
}

// Speak implements Backend. Text is passed as a single argument; the
// binaries handle their own playback.
func (b *CommandBackend) Speak(ctx context.Context, text string) error {
	if b.path == "" {
		return fmt.Errorf("synthesis binary %q not available", b.config.Command)
	}

	cmd := exec.CommandContext(ctx, b.path, b.args(text)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("synthesis command (%s): %w: %s", b.config.Command, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (b *CommandBackend) args(text string) []string {
	switch b.config.Command {
	case "espeak-ng", "espeak":
		args := []string{}
		if b.config.Rate > 0 {
			args = append(args, "-s", fmt.Sprintf("%d", b.config.Rate))
		}
		return append(args, text)
	case "say":
		if b.config.Rate > 0 {
			return []string{"-r", fmt.Sprintf("%d", b.config.Rate), text}
		}
		return []string{text}
	default:
		return []string{text}
	}
}
