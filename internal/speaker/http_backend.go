package speaker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPConfig configures the OpenAI-compatible synthesis backend.
type HTTPConfig struct {
	// Endpoint is the synthesis URL (e.g. http://localhost:8880/v1/audio/speech).
	Endpoint string

	// Voice is the voice identifier (e.g. "am_adam").
	Voice string

	// Model is the synthesis model name (e.g. "kokoro").
	Model string

	// ResponseFormat is the audio format to request ("wav").
	ResponseFormat string

	// Speed is the playback speed multiplier (0.5-2.0).
	Speed float64

	// Timeout bounds a single synthesis request.
	Timeout time.Duration
}

// DefaultHTTPConfig returns defaults for a local kokoro-style server.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Endpoint:       "http://localhost:8880/v1/audio/speech",
		Voice:          "am_adam",
		Model:          "kokoro",
		ResponseFormat: "wav",
		Speed:          1.0,
		Timeout:        60 * time.Second,
	}
}

type synthesisRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

// HTTPBackend synthesizes speech through an OpenAI-compatible audio API
// and plays the result through the local audio player.
type HTTPBackend struct {
	config HTTPConfig
	client *http.Client
	player *Player
}

// NewHTTPBackend creates the HTTP synthesis backend.
func NewHTTPBackend(config HTTPConfig, player *Player) *HTTPBackend {
	if config.Endpoint == "" {
		config = DefaultHTTPConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	return &HTTPBackend{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		player: player,
	}
}

// Name implements Backend.
func (b *HTTPBackend) Name() string { return "http" }

// Available probes the server's health endpoint, derived from the
// synthesis endpoint by convention.
func (b *HTTPBackend) Available(ctx context.Context) bool {
	healthURL := strings.TrimSuffix(b.config.Endpoint, "/v1/audio/speech") + "/health"

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return resp.StatusCode == http.StatusOK
}

// Speak synthesizes the text and plays the returned audio.
func (b *HTTPBackend) Speak(ctx context.Context, text string) error {
	audio, err := b.synthesize(ctx, text)
	if err != nil {
		return err
	}
	return b.player.Play(ctx, audio)
}

func (b *HTTPBackend) synthesize(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()

	body, err := json.Marshal(synthesisRequest{
		Model:          b.config.Model,
		Input:          text,
		Voice:          b.config.Voice,
		ResponseFormat: b.config.ResponseFormat,
		Speed:          b.config.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("synthesis server status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}

	log.Debug().
		Str("voice", b.config.Voice).
		Int("audio_bytes", len(audio)).
		Dur("latency", time.Since(start)).
		Msg("speech synthesis complete")

	return audio, nil
}
