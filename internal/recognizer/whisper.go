package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// WhisperConfig configures the HTTP transcription backend. The endpoint
// is expected to be a whisper-server style /inference API.
type WhisperConfig struct {
	// Endpoint is the inference URL (e.g. http://127.0.0.1:8178/inference).
	Endpoint string

	// ModelSize selects the model variant ("tiny", "base", "small", ...).
	ModelSize string

	// Device selects the compute device ("cpu", "cuda", "auto").
	Device string

	// ComputeType is the inference precision ("int8", "float16", "auto").
	ComputeType string

	// BeamSize is the decoding beam width.
	BeamSize int

	// VADFilter enables server-side voice activity filtering.
	VADFilter bool

	// VADMinSilence is the minimum silence the server's VAD uses to split
	// speech, in milliseconds.
	VADMinSilence int

	// Language fixes the transcription language; empty means auto-detect.
	Language string

	// SampleRate is the PCM sample rate of submitted audio.
	SampleRate int

	// Timeout bounds a single inference request.
	Timeout time.Duration
}

// DefaultWhisperConfig returns sensible defaults for a local server.
func DefaultWhisperConfig() WhisperConfig {
	return WhisperConfig{
		Endpoint:      "http://127.0.0.1:8178/inference",
		ModelSize:     "base",
		Device:        "auto",
		ComputeType:   "auto",
		BeamSize:      5,
		VADFilter:     true,
		VADMinSilence: 500,
		Language:      "en",
		SampleRate:    16000,
		Timeout:       30 * time.Second,
	}
}

// WhisperTranscriber posts captured audio to a whisper server.
type WhisperTranscriber struct {
	config WhisperConfig
	client *http.Client
}

// NewWhisperTranscriber creates the HTTP transcription backend.
func NewWhisperTranscriber(config WhisperConfig) *WhisperTranscriber {
	if config.Endpoint == "" {
		config = DefaultWhisperConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	return &WhisperTranscriber{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Transcribe uploads the phrase as WAV and returns the transcript text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	start := time.Now()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "phrase.wav")
	if err != nil {
		return "", fmt.Errorf("build multipart request: %w", err)
	}
	if _, err := part.Write(encodeWAV(pcm, t.config.SampleRate)); err != nil {
		return "", fmt.Errorf("write audio payload: %w", err)
	}

	fields := map[string]string{
		"response_format": "json",
		"model":           t.config.ModelSize,
		"device":          t.config.Device,
		"compute_type":    t.config.ComputeType,
		"beam_size":       strconv.Itoa(t.config.BeamSize),
		"vad_filter":      strconv.FormatBool(t.config.VADFilter),
		"vad_min_silence": strconv.Itoa(t.config.VADMinSilence),
	}
	if t.config.Language != "" {
		fields["language"] = t.config.Language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription server status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}

	log.Debug().
		Int("audio_bytes", len(pcm)).
		Dur("latency", time.Since(start)).
		Msg("transcription complete")

	return out.Text, nil
}
