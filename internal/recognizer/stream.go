package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StreamConfig configures the websocket transcription backend.
type StreamConfig struct {
	// Endpoint is the websocket URL (e.g. ws://127.0.0.1:8765/ws/stt).
	Endpoint string

	// Language fixes the transcription language; empty means auto-detect.
	Language string

	// SampleRate is the PCM sample rate of submitted audio.
	SampleRate int

	// ChunkBytes is the size of each binary audio frame sent.
	ChunkBytes int

	// Timeout bounds the wait for the final transcript message.
	Timeout time.Duration
}

// DefaultStreamConfig returns defaults for a local streaming server.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Endpoint:   "ws://127.0.0.1:8765/ws/stt",
		Language:   "en",
		SampleRate: 16000,
		ChunkBytes: 8192,
		Timeout:    30 * time.Second,
	}
}

// StreamTranscriber sends each phrase over a websocket connection and
// waits for the server's transcript message. One dial per phrase keeps
// the failure domain small; phrase boundaries are already decided by the
// recognizer's endpointing.
type StreamTranscriber struct {
	config StreamConfig
	dialer *websocket.Dialer
}

// NewStreamTranscriber creates the websocket transcription backend.
func NewStreamTranscriber(config StreamConfig) *StreamTranscriber {
	if config.Endpoint == "" {
		config = DefaultStreamConfig()
	}
	if config.ChunkBytes <= 0 {
		config.ChunkBytes = 8192
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	return &StreamTranscriber{
		config: config,
		dialer: websocket.DefaultDialer,
	}
}

type streamStart struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language,omitempty"`
}

type streamMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Transcribe streams the phrase audio and returns the final transcript.
func (t *StreamTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	conn, _, err := t.dialer.DialContext(ctx, t.config.Endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("dial transcription stream: %w", err)
	}
	defer conn.Close()

	// Unblock reads/writes if the context dies while we wait.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	start, err := json.Marshal(streamStart{
		Type:       "start",
		SampleRate: t.config.SampleRate,
		Language:   t.config.Language,
	})
	if err != nil {
		return "", fmt.Errorf("marshal stream start: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, start); err != nil {
		return "", fmt.Errorf("send stream start: %w", err)
	}

	for off := 0; off < len(pcm); off += t.config.ChunkBytes {
		end := off + t.config.ChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			return "", fmt.Errorf("send audio chunk: %w", err)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"flush"}`)); err != nil {
		return "", fmt.Errorf("send flush: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("read transcript: %w", err)
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed stream message")
			continue
		}

		switch msg.Type {
		case "transcript":
			return msg.Text, nil
		case "error":
			return "", fmt.Errorf("transcription stream error: %s", msg.Error)
		default:
			// Partial results and keepalives are informational only.
		}
	}
}
