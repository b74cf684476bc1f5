// Package main is the entry point for the Nebula voice assistant.
// Nebula listens for a hotword, confirms what it heard, runs the
// command (or routes it to a chat backend), and speaks the result —
// without ever listening to its own voice.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/nebula/internal/chat"
	"github.com/normanking/nebula/internal/config"
	"github.com/normanking/nebula/internal/executor"
	"github.com/normanking/nebula/internal/recognizer"
	"github.com/normanking/nebula/internal/session"
	"github.com/normanking/nebula/internal/speaker"
	"github.com/normanking/nebula/internal/store"
	"github.com/normanking/nebula/pkg/voice"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	hotword string
	profile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nebula",
		Short: "Nebula - hotword-activated voice command assistant",
		Long: `Nebula is a hands-free voice front-end for your machine:
  • Say the hotword plus a command ("nebula check disk space")
  • Confirm or correct what it heard, then it runs
  • Say "nebula chat" for free-form conversation
  • Say "nebula shutdown" to stop

Run the session:   nebula
Configuration:     nebula config show
Recent activity:   nebula log`,
		RunE: runSession,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.nebula/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&hotword, "hotword", "", "override the configured hotword")
	rootCmd.Flags().StringVar(&profile, "profile", "", "recognizer profile (responsive, balanced, dictation)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Nebula v%s\n", version)
		},
	})
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

func initLogging(level string) {
	if verbose {
		level = "debug"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if hotword != "" {
		cfg.Hotword.Word = hotword
	}
	if profile != "" {
		cfg.Recognizer.Profile = profile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	initLogging(cfg.Logging.Level)
	lipgloss.SetColorProfile(termenv.ColorProfile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shared gate: the recognizer waits on it, the speaker closes it.
	gate := voice.NewListeningGate()

	capture, err := recognizer.NewExecCapture(recognizer.CaptureConfig{
		Command:     cfg.Recognizer.CaptureCommand,
		InputFormat: cfg.Recognizer.InputFormat,
		Device:      cfg.Recognizer.Device,
		SampleRate:  cfg.Recognizer.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("microphone capture: %w", err)
	}

	var transcriber recognizer.Transcriber
	switch cfg.Recognizer.Backend {
	case "stream":
		streamCfg := recognizer.DefaultStreamConfig()
		streamCfg.Endpoint = cfg.Recognizer.Endpoint
		streamCfg.Language = cfg.Recognizer.Language
		streamCfg.SampleRate = cfg.Recognizer.SampleRate
		transcriber = recognizer.NewStreamTranscriber(streamCfg)
	default:
		whisperCfg := recognizer.DefaultWhisperConfig()
		whisperCfg.Endpoint = cfg.Recognizer.Endpoint
		whisperCfg.Language = cfg.Recognizer.Language
		whisperCfg.SampleRate = cfg.Recognizer.SampleRate
		transcriber = recognizer.NewWhisperTranscriber(whisperCfg)
	}

	rec := recognizer.New(capture, transcriber, gate)
	initialProfile, err := voice.ProfileByName(cfg.Recognizer.Profile)
	if err != nil {
		return err
	}
	rec.SetProfile(initialProfile)

	log.Info().Msg("calibrating ambient noise, stay quiet for a second")
	if err := rec.Calibrate(ctx); err != nil {
		return fmt.Errorf("ambient calibration: %w", err)
	}

	spk := buildSpeaker(cfg, gate)

	interactions, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open interaction store: %w", err)
	}
	defer interactions.Close()

	sessionID := uuid.NewString()
	observer := session.MultiObserver{
		session.NewConsoleObserver(os.Stdout),
		session.LogObserver{},
		session.NewStoreObserver(interactions, sessionID),
	}

	sess, err := session.New(session.Config{
		SessionID: sessionID,
		Hotword: voice.HotwordConfig{
			Hotword:   cfg.Hotword.Word,
			Aliases:   cfg.Hotword.Aliases,
			Tolerance: cfg.Hotword.Tolerance,
		},
		Profile:            cfg.Recognizer.Profile,
		RequireChatHotword: cfg.Chat.RequireHotword,
		SpeakSummary:       cfg.Session.SpeakSummary,
		Cooldown:           time.Duration(cfg.Speaker.CooldownMs) * time.Millisecond,
		HistorySize:        cfg.Session.HistorySize,
		JoinTimeout:        2 * time.Second,
	}, gate, recognizer.StartWorker(ctx, rec), spk,
		executor.NewShellRunner(cfg.Session.Shell),
		chat.NewHTTPClient(chat.Config{
			Endpoint: cfg.Chat.Endpoint,
			APIKey:   cfg.Chat.APIKey,
			Model:    cfg.Chat.Model,
		}), observer)
	if err != nil {
		return err
	}

	return sess.Run(ctx)
}

// buildSpeaker assembles the synthesis chain: HTTP backend when a local
// player exists, OS-native command synthesis as fallback.
func buildSpeaker(cfg *config.Config, gate *voice.ListeningGate) *speaker.Speaker {
	var backends []speaker.Backend

	player, err := speaker.NewPlayer(speaker.PlayerConfig{Command: cfg.Speaker.PlayerCommand})
	if err != nil {
		log.Warn().Err(err).Msg("no audio player, HTTP synthesis disabled")
	} else {
		backends = append(backends, speaker.NewHTTPBackend(speaker.HTTPConfig{
			Endpoint: cfg.Speaker.Endpoint,
			Voice:    cfg.Speaker.Voice,
			Model:    cfg.Speaker.Model,
			Speed:    cfg.Speaker.Speed,
		}, player))
	}
	backends = append(backends, speaker.NewCommandBackend(speaker.CommandConfig{
		Command: cfg.Speaker.FallbackCommand,
		Rate:    cfg.Speaker.FallbackRate,
	}))

	return speaker.New(speaker.Config{
		Cooldown:        time.Duration(cfg.Speaker.CooldownMs) * time.Millisecond,
		PostSpeechDelay: time.Duration(cfg.Speaker.PostSpeechDelayMs) * time.Millisecond,
	}, gate, backends...)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				return cfg.SaveToPath(cfgPath)
			}
			return cfg.Save()
		},
	})

	return cmd
}

func logCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent interactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			interactions, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer interactions.Close()

			recent, err := interactions.Recent(limit)
			if err != nil {
				return err
			}
			for _, it := range recent {
				fmt.Printf("%s  %-10s  %s\n", it.CreatedAt.Format("2006-01-02 15:04:05"), it.Kind, it.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of interactions to show")
	return cmd
}
