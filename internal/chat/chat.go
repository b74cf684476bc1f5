// Package chat talks to the conversational backend for chat mode.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/nebula/pkg/voice"
)

// Client completes a chat turn given the prompt and prior conversation.
type Client interface {
	Complete(ctx context.Context, prompt string, history []voice.Turn) (string, error)
}

// Config configures the OpenAI-compatible chat backend.
type Config struct {
	// Endpoint is the API base URL (e.g. http://localhost:11434/v1).
	Endpoint string

	// APIKey is the bearer token; empty for local servers that skip auth.
	APIKey string

	// Model is the completion model name.
	Model string

	// SystemPrompt frames the assistant; spoken replies should be short.
	SystemPrompt string

	// MaxTokens caps the reply length.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64

	// Timeout bounds a single completion request.
	Timeout time.Duration
}

// DefaultConfig returns defaults for a local OpenAI-compatible server.
func DefaultConfig() Config {
	return Config{
		Endpoint:     "http://localhost:11434/v1",
		Model:        "llama3.2",
		SystemPrompt: "You are a voice assistant. Answer in one or two short spoken sentences, no markdown.",
		MaxTokens:    256,
		Temperature:  0.7,
		Timeout:      60 * time.Second,
	}
}

// HTTPClient is an OpenAI-compatible chat completions client.
type HTTPClient struct {
	config Config
	client *http.Client
}

// NewHTTPClient creates the chat backend client.
func NewHTTPClient(config Config) *HTTPClient {
	if config.Endpoint == "" {
		config = DefaultConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &HTTPClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete implements Client. The history already contains the current
// user turn when the session appends before dispatching; prompt is the
// raw turn text and is sent only when absent from history.
func (c *HTTPClient) Complete(ctx context.Context, prompt string, history []voice.Turn) (string, error) {
	start := time.Now()

	req := chatRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	if c.config.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: c.config.SystemPrompt})
	}
	for _, turn := range history {
		req.Messages = append(req.Messages, chatMessage{Role: string(turn.Role), Content: turn.Text})
	}
	if n := len(history); n == 0 || history[n-1].Text != prompt || history[n-1].Role != voice.RoleUser {
		req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat backend status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat backend returned no choices")
	}

	log.Debug().
		Str("model", c.config.Model).
		Int("history_turns", len(history)).
		Int("tokens", out.Usage.TotalTokens).
		Dur("latency", time.Since(start)).
		Msg("chat completion")

	return out.Choices[0].Message.Content, nil
}
