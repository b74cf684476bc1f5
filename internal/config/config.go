// Package config loads and persists Nebula's configuration. Resolution
// is layered: built-in defaults, then ~/.nebula/config.yaml (created on
// first run), then NEBULA_* environment overrides. The result is read
// once before session construction and never reloaded.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete Nebula configuration.
type Config struct {
	Hotword    HotwordConfig    `mapstructure:"hotword" yaml:"hotword"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer"`
	Speaker    SpeakerConfig    `mapstructure:"speaker" yaml:"speaker"`
	Chat       ChatConfig       `mapstructure:"chat" yaml:"chat"`
	Session    SessionConfig    `mapstructure:"session" yaml:"session"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// HotwordConfig configures the trigger word matcher.
type HotwordConfig struct {
	// Word is the primary hotword.
	Word string `mapstructure:"word" yaml:"word"`

	// Aliases are accepted stand-ins for the hotword.
	Aliases []string `mapstructure:"aliases" yaml:"aliases"`

	// Tolerance is the maximum edit distance for a fuzzy match.
	Tolerance int `mapstructure:"tolerance" yaml:"tolerance"`
}

// RecognizerConfig configures capture and transcription.
type RecognizerConfig struct {
	// Profile names the initial timing profile
	// (responsive, balanced, dictation).
	Profile string `mapstructure:"profile" yaml:"profile"`

	// CaptureCommand is the capture binary ("ffmpeg" or "arecord").
	CaptureCommand string `mapstructure:"capture_command" yaml:"capture_command"`

	// InputFormat is the ffmpeg input demuxer ("pulse", "alsa",
	// "avfoundation"). Ignored by arecord.
	InputFormat string `mapstructure:"input_format" yaml:"input_format"`

	// Device is the capture device ("default", "hw:0", "pulse").
	Device string `mapstructure:"device" yaml:"device"`

	// SampleRate is the capture sample rate in Hz.
	SampleRate int `mapstructure:"sample_rate" yaml:"sample_rate"`

	// Backend selects the transcription transport ("http" or "stream").
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Endpoint is the transcription service URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Language fixes the transcription language; empty auto-detects.
	Language string `mapstructure:"language" yaml:"language"`
}

// SpeakerConfig configures synthesis, playback and gate timing.
type SpeakerConfig struct {
	// Endpoint is the synthesis API URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Voice is the synthesis voice identifier.
	Voice string `mapstructure:"voice" yaml:"voice"`

	// Model is the synthesis model name.
	Model string `mapstructure:"model" yaml:"model"`

	// Speed is the playback speed multiplier.
	Speed float64 `mapstructure:"speed" yaml:"speed"`

	// PlayerCommand is the local playback binary.
	PlayerCommand string `mapstructure:"player_command" yaml:"player_command"`

	// FallbackCommand is the local synthesis binary used when the HTTP
	// backend is down.
	FallbackCommand string `mapstructure:"fallback_command" yaml:"fallback_command"`

	// FallbackRate is the fallback synthesis speaking rate in words per
	// minute.
	FallbackRate int `mapstructure:"fallback_rate" yaml:"fallback_rate"`

	// CooldownMs is how long the microphone stays gated after playback.
	CooldownMs int `mapstructure:"cooldown_ms" yaml:"cooldown_ms"`

	// PostSpeechDelayMs is the settle pause before the cooldown starts.
	PostSpeechDelayMs int `mapstructure:"post_speech_delay_ms" yaml:"post_speech_delay_ms"`
}

// ChatConfig configures the conversational backend.
type ChatConfig struct {
	// Endpoint is the OpenAI-compatible API base URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// APIKey is the bearer token; empty for local servers.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// Model is the completion model name.
	Model string `mapstructure:"model" yaml:"model"`

	// RequireHotword demands the hotword on chat turns too.
	RequireHotword bool `mapstructure:"require_hotword" yaml:"require_hotword"`
}

// SessionConfig configures orchestrator behavior.
type SessionConfig struct {
	// SpeakSummary speaks a short outcome instead of full command output.
	SpeakSummary bool `mapstructure:"speak_summary" yaml:"speak_summary"`

	// HistorySize bounds the chat conversation memory.
	HistorySize int `mapstructure:"history_size" yaml:"history_size"`

	// Shell is the command shell for confirmed instructions.
	Shell string `mapstructure:"shell" yaml:"shell"`
}

// StoreConfig configures the interaction log.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hotword: HotwordConfig{
			Word:      "nebula",
			Aliases:   []string{"neba", "neb", "nebby", "nebula's"},
			Tolerance: 2,
		},
		Recognizer: RecognizerConfig{
			Profile:        "balanced",
			CaptureCommand: "ffmpeg",
			InputFormat:    "pulse",
			Device:         "default",
			SampleRate:     16000,
			Backend:        "http",
			Endpoint:       "http://127.0.0.1:8178/inference",
			Language:       "en",
		},
		Speaker: SpeakerConfig{
			Endpoint:          "http://localhost:8880/v1/audio/speech",
			Voice:             "am_adam",
			Model:             "kokoro",
			Speed:             1.0,
			PlayerCommand:     "aplay",
			FallbackCommand:   "espeak-ng",
			FallbackRate:      175,
			CooldownMs:        1200,
			PostSpeechDelayMs: 300,
		},
		Chat: ChatConfig{
			Endpoint: "http://localhost:11434/v1",
			Model:    "llama3.2",
		},
		Session: SessionConfig{
			SpeakSummary: true,
			HistorySize:  10,
			Shell:        "sh",
		},
		Store: StoreConfig{
			Path: "~/.nebula/interactions.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from ~/.nebula/config.yaml, creating the file
// with defaults on first run, and merges NEBULA_* environment overrides.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".nebula", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file, creating it with
// defaults if absent.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Example override: NEBULA_CHAT_API_KEY.
	v.SetEnvPrefix("NEBULA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Store.Path = expandPath(cfg.Store.Path)

	return &cfg, nil
}

// setDefaults registers every key with viper so values omitted from a
// hand-edited file resolve through the normal layering, booleans
// included. The zero value of a bool field would otherwise be
// indistinguishable from an explicit false.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("hotword.word", d.Hotword.Word)
	v.SetDefault("hotword.tolerance", d.Hotword.Tolerance)
	// No default for hotword.aliases: the stock aliases only make sense
	// for the stock hotword.

	v.SetDefault("recognizer.profile", d.Recognizer.Profile)
	v.SetDefault("recognizer.capture_command", d.Recognizer.CaptureCommand)
	v.SetDefault("recognizer.input_format", d.Recognizer.InputFormat)
	v.SetDefault("recognizer.device", d.Recognizer.Device)
	v.SetDefault("recognizer.sample_rate", d.Recognizer.SampleRate)
	v.SetDefault("recognizer.backend", d.Recognizer.Backend)
	v.SetDefault("recognizer.endpoint", d.Recognizer.Endpoint)
	v.SetDefault("recognizer.language", d.Recognizer.Language)

	v.SetDefault("speaker.endpoint", d.Speaker.Endpoint)
	v.SetDefault("speaker.voice", d.Speaker.Voice)
	v.SetDefault("speaker.model", d.Speaker.Model)
	v.SetDefault("speaker.speed", d.Speaker.Speed)
	v.SetDefault("speaker.player_command", d.Speaker.PlayerCommand)
	v.SetDefault("speaker.fallback_command", d.Speaker.FallbackCommand)
	v.SetDefault("speaker.fallback_rate", d.Speaker.FallbackRate)
	v.SetDefault("speaker.cooldown_ms", d.Speaker.CooldownMs)
	v.SetDefault("speaker.post_speech_delay_ms", d.Speaker.PostSpeechDelayMs)

	v.SetDefault("chat.endpoint", d.Chat.Endpoint)
	v.SetDefault("chat.api_key", d.Chat.APIKey)
	v.SetDefault("chat.model", d.Chat.Model)
	v.SetDefault("chat.require_hotword", d.Chat.RequireHotword)

	v.SetDefault("session.speak_summary", d.Session.SpeakSummary)
	v.SetDefault("session.history_size", d.Session.HistorySize)
	v.SetDefault("session.shell", d.Session.Shell)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("logging.level", d.Logging.Level)
}

// Validate checks the configuration for common mistakes.
func (c *Config) Validate() error {
	if c.Hotword.Word == "" {
		return fmt.Errorf("hotword.word cannot be empty")
	}
	if c.Hotword.Tolerance < 0 {
		return fmt.Errorf("hotword.tolerance cannot be negative")
	}

	switch c.Recognizer.Profile {
	case "responsive", "balanced", "dictation":
	default:
		return fmt.Errorf("invalid recognizer.profile %q, must be one of: responsive, balanced, dictation", c.Recognizer.Profile)
	}

	switch c.Recognizer.Backend {
	case "http", "stream":
	default:
		return fmt.Errorf("invalid recognizer.backend %q, must be http or stream", c.Recognizer.Backend)
	}

	if c.Recognizer.SampleRate <= 0 {
		return fmt.Errorf("recognizer.sample_rate must be positive")
	}
	if c.Speaker.CooldownMs <= 0 {
		return fmt.Errorf("speaker.cooldown_ms must be positive")
	}
	if c.Speaker.FallbackRate < 0 {
		return fmt.Errorf("speaker.fallback_rate cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// Save writes the configuration to the default location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home directory: %w", err)
	}
	return c.SaveToPath(filepath.Join(homeDir, ".nebula", "config.yaml"))
}

// SaveToPath writes the configuration to a specific file.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// writeConfigFile marshals through yaml.v3 so the yaml struct tags drive
// the layout of the generated file.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
