package speaker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// PlayerConfig configures the local audio playback command.
type PlayerConfig struct {
	// Command is the playback binary ("aplay", "ffplay", "paplay").
	Command string
}

// DefaultPlayerConfig returns the stock ALSA player.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{Command: "aplay"}
}

// Player pipes synthesized audio to an external playback command. The
// binary is resolved once at construction so a missing player surfaces
// at startup rather than mid-conversation.
type Player struct {
	config PlayerConfig
	path   string
}

// NewPlayer resolves the playback binary.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if config.Command == "" {
		config = DefaultPlayerConfig()
	}
	path, err := exec.LookPath(config.Command)
	if err != nil {
		return nil, fmt.Errorf("audio player %q not found in PATH: %w", config.Command, err)
	}
	return &Player{config: config, path: path}, nil
}

// Play blocks until the audio has finished playing.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, p.path, p.args()...)
	cmd.Stdin = bytes.NewReader(audio)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio playback (%s): %w: %s", p.config.Command, err, strings.TrimSpace(stderr.String()))
	}

	log.Debug().
		Int("audio_bytes", len(audio)).
		Str("player", p.config.Command).
		Msg("audio playback complete")
	return nil
}

// args returns per-binary flags for reading audio from stdin.
func (p *Player) args() []string {
	switch p.config.Command {
	case "aplay":
		return []string{"-q", "-"}
	case "paplay":
		return nil // reads stdin by default
	case "ffplay":
		return []string{"-autoexit", "-nodisp", "-loglevel", "quiet", "-"}
	default:
		return []string{"-"}
	}
}
