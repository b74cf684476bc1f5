package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/normanking/nebula/internal/executor"
	"github.com/normanking/nebula/pkg/voice"
)

// UtteranceSource is the capture worker as the session sees it.
type UtteranceSource interface {
	Utterances() <-chan voice.Utterance
	SetProfile(voice.Profile)
	Stop(timeout time.Duration) error
}

// Speaker speaks text, owning the gate for the duration of playback.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ChatClient completes chat turns against the conversational backend.
type ChatClient interface {
	Complete(ctx context.Context, prompt string, history []voice.Turn) (string, error)
}

// Config is the session's resolved configuration, read once at
// construction.
type Config struct {
	// SessionID identifies this run in logs and the interaction store;
	// empty generates one.
	SessionID string

	// Hotword is the trigger word configuration.
	Hotword voice.HotwordConfig

	// Profile names the initial recognizer profile.
	Profile string

	// RequireChatHotword demands the hotword on chat turns too.
	RequireChatHotword bool

	// SpeakSummary speaks a short outcome instead of full command output.
	SpeakSummary bool

	// Cooldown is the gate reopen delay after the session itself closed
	// the gate (command execution).
	Cooldown time.Duration

	// HistorySize bounds the chat conversation memory.
	HistorySize int

	// JoinTimeout bounds waiting for the capture worker at shutdown.
	JoinTimeout time.Duration
}

// DefaultConfig returns the stock session configuration.
func DefaultConfig() Config {
	return Config{
		Hotword:      voice.DefaultHotwordConfig(),
		Profile:      "balanced",
		SpeakSummary: true,
		Cooldown:     1200 * time.Millisecond,
		HistorySize:  voice.DefaultHistoryCapacity,
		JoinTimeout:  2 * time.Second,
	}
}

// Session is the voice session orchestrator. It consumes utterances from
// the capture worker and drives the Listening / Confirming / Executing /
// Speaking / chat state machine. All state lives on the session and is
// touched only from Run's goroutine.
type Session struct {
	id       string
	config   Config
	matcher  *voice.Matcher
	cleaner  *voice.Cleaner
	history  *voice.History
	gate     *voice.ListeningGate
	source   UtteranceSource
	speaker  Speaker
	runner   executor.Runner
	chat     ChatClient
	observer Observer

	state        State
	pending      *PendingCommand
	profile      voice.Profile
	priorProfile voice.Profile
	stopping     bool
}

// New constructs a session. The gate must be the same instance the
// recognizer waits on and the speaker closes.
func New(config Config, gate *voice.ListeningGate, source UtteranceSource, speaker Speaker, runner executor.Runner, chatClient ChatClient, observer Observer) (*Session, error) {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultConfig().Cooldown
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = DefaultConfig().JoinTimeout
	}
	if config.HistorySize <= 0 {
		config.HistorySize = voice.DefaultHistoryCapacity
	}
	profile, err := voice.ProfileByName(config.Profile)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = LogObserver{}
	}
	if config.SessionID == "" {
		config.SessionID = uuid.NewString()
	}

	return &Session{
		id:       config.SessionID,
		config:   config,
		matcher:  voice.NewMatcher(config.Hotword),
		cleaner:  voice.NewCleaner(),
		history:  voice.NewHistory(config.HistorySize),
		gate:     gate,
		source:   source,
		speaker:  speaker,
		runner:   runner,
		chat:     chatClient,
		observer: observer,
		state:    Idle,
		profile:  profile,
	}, nil
}

// ID returns the session identifier used in the interaction log.
func (s *Session) ID() string { return s.id }

// State returns the current state. Only meaningful between Run steps in
// tests; Run's goroutine is the sole writer.
func (s *Session) State() State { return s.state }

// History returns a copy of the chat conversation memory.
func (s *Session) History() []voice.Turn { return s.history.Turns() }

// Run drives the session until the context is cancelled or a shutdown
// phrase is heard. The gate is left open on return.
func (s *Session) Run(ctx context.Context) error {
	s.source.SetProfile(s.profile)
	s.setState(Listening)
	log.Info().Str("session_id", s.id).Str("hotword", s.config.Hotword.Hotword).Msg("voice session started")

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case u, ok := <-s.source.Utterances():
			if !ok {
				return s.shutdown()
			}
			s.handleUtterance(ctx, u)
			if s.stopping {
				return s.shutdown()
			}
		}
	}
}

func (s *Session) handleUtterance(ctx context.Context, u voice.Utterance) {
	if !s.state.listeningFamily() {
		log.Debug().
			Str("state", s.state.String()).
			Str("text", u.Text).
			Msg("utterance outside listening state, discarded")
		return
	}

	text := s.cleaner.Clean(u.Text)
	if text == "" {
		return
	}
	s.emit(EventHeard, text)

	switch s.state {
	case Listening:
		s.handleListening(ctx, text)
	case Confirming:
		s.handleConfirming(ctx, text)
	case ChatListening:
		s.handleChatListening(ctx, text)
	}
}

func (s *Session) handleListening(ctx context.Context, text string) {
	match, ok := s.matcher.Match(text)
	if !ok {
		log.Debug().Str("text", text).Msg("no hotword, ignoring")
		return
	}

	remainder := strings.TrimSpace(match.Remainder)
	switch {
	case remainder == "":
		// Bare hotword: acknowledged in the event stream, nothing to run.
		s.emit(EventState, "hotword heard, awaiting command")
	case s.isShutdownPhrase(remainder):
		s.speakThen(ctx, Listening, "Shutting down.")
		s.stopping = true
	case s.isChatEntryPhrase(remainder):
		s.enterChat(ctx)
	default:
		s.pending = newPendingCommand(remainder)
		s.setState(Confirming)
		s.speakThen(ctx, Confirming, "I heard: "+remainder+". Say yes to run it, or say the command again.")
	}
}

func (s *Session) handleConfirming(ctx context.Context, text string) {
	switch s.cleaner.Confirmation(text) {
	case voice.ReplyYes:
		s.pending.Confirmed = true
		s.execute(ctx)
	case voice.ReplyCancel:
		s.pending = nil
		s.speakThen(ctx, Listening, "Cancelled.")
	default:
		// Any other utterance is a correction: it replaces the edited
		// text and the session re-prompts.
		if match, ok := s.matcher.Match(text); ok && strings.TrimSpace(match.Remainder) != "" {
			text = strings.TrimSpace(match.Remainder)
		}
		s.pending.Replace(text)
		s.speakThen(ctx, Confirming, "Okay: "+text+". Say yes to run it.")
	}
}

func (s *Session) execute(ctx context.Context) {
	cmd := s.pending
	s.pending = nil
	s.setState(Executing)
	s.emit(EventCommand, cmd.Edited)

	// No listening while the command runs; its output must not be heard
	// as input.
	s.gate.Close()

	res, err := s.runner.Execute(ctx, cmd.Edited, func(line string) {
		s.emit(EventOutput, line)
	})

	var spoken string
	switch {
	case err != nil:
		s.emit(EventError, err.Error())
		spoken = "The command failed to start."
	case s.config.SpeakSummary:
		spoken = res.Summary()
	default:
		spoken = res.Full()
	}
	if res != nil {
		s.emit(EventResult, res.Summary())
	}

	s.speakThen(ctx, Listening, spoken)
}

func (s *Session) enterChat(ctx context.Context) {
	// Each chat engagement starts with a clean slate.
	s.history.Clear()
	s.priorProfile = s.profile
	s.profile = voice.DictationProfile()
	s.source.SetProfile(s.profile)
	s.speakThen(ctx, ChatListening, "Chat mode. Say end chat when you are done.")
}

func (s *Session) exitChat(ctx context.Context) {
	s.profile = s.priorProfile
	s.source.SetProfile(s.profile)
	s.speakThen(ctx, Listening, "Leaving chat mode.")
}

func (s *Session) handleChatListening(ctx context.Context, text string) {
	turn := text
	if match, ok := s.matcher.Match(text); ok {
		turn = strings.TrimSpace(match.Remainder)
	} else if s.config.RequireChatHotword {
		log.Debug().Str("text", text).Msg("chat turn lacks hotword, discarded")
		return
	}
	if s.isChatExitPhrase(turn) {
		s.exitChat(ctx)
		return
	}
	if turn == "" {
		return
	}

	s.emit(EventChatUser, turn)
	s.history.Append(voice.RoleUser, turn)

	reply, err := s.chat.Complete(ctx, turn, s.history.Turns())
	if err != nil {
		s.emit(EventError, err.Error())
		s.speakThen(ctx, ChatListening, "Sorry, I could not reach the chat backend.")
		return
	}

	s.history.Append(voice.RoleAssistant, reply)
	s.emit(EventChatReply, reply)
	s.speakThen(ctx, ChatListening, reply)
}

// speakThen speaks text, waits out the cooldown, and lands in next. The
// Speaking/Cooldown (or ChatSpeaking) states are visible to observers
// even though the whole sequence runs synchronously.
func (s *Session) speakThen(ctx context.Context, next State, text string) {
	if text != "" {
		if next == ChatListening {
			s.setState(ChatSpeaking)
		} else {
			s.setState(Speaking)
		}
		s.emit(EventSpoken, text)
		if err := s.speaker.Speak(ctx, text); err != nil {
			s.emit(EventError, err.Error())
		}
	}

	// The session may have closed the gate itself (Executing); make sure
	// a reopen is on the clock regardless of what the speaker did.
	if !s.gate.IsOpen() && time.Now().After(s.gate.ReopenNotBefore()) {
		s.gate.ScheduleReopen(s.config.Cooldown)
	}

	s.setState(Cooldown)
	if err := s.gate.Wait(ctx); err != nil {
		// Context cancelled; Run will notice and shut down.
		s.setState(next)
		return
	}
	s.setState(next)
}

func (s *Session) isShutdownPhrase(text string) bool {
	switch strings.ToLower(text) {
	case "shutdown", "shut down", "go to sleep", "power off":
		return true
	}
	return false
}

func (s *Session) isChatEntryPhrase(text string) bool {
	switch strings.ToLower(text) {
	case "chat", "start chat", "let's chat", "chat mode":
		return true
	}
	return false
}

func (s *Session) isChatExitPhrase(text string) bool {
	switch strings.ToLower(text) {
	case "end chat", "stop chat", "exit chat", "end the chat":
		return true
	}
	return false
}

// shutdown joins the capture worker and leaves the gate open.
func (s *Session) shutdown() error {
	s.setState(Idle)

	err := s.source.Stop(s.config.JoinTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("capture worker did not join cleanly")
	}

	// Whatever happened, the gate must not end closed.
	s.gate.ForceOpen()
	log.Info().Str("session_id", s.id).Msg("voice session stopped")
	return err
}

func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	log.Debug().
		Str("from", s.state.String()).
		Str("to", next.String()).
		Msg("state transition")
	s.state = next
	s.emit(EventState, next.String())
}

func (s *Session) emit(kind EventKind, text string) {
	s.observer.Observe(Event{
		Time:  time.Now(),
		Kind:  kind,
		State: s.state,
		Text:  text,
	})
}
