package session

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/normanking/nebula/internal/store"
)

// EventKind labels a session event.
type EventKind string

const (
	// EventState marks a state transition; Text holds the new state.
	EventState EventKind = "state"

	// EventHeard marks a recognized utterance.
	EventHeard EventKind = "heard"

	// EventCommand marks an instruction entering execution.
	EventCommand EventKind = "command"

	// EventOutput marks one line of command output.
	EventOutput EventKind = "output"

	// EventResult marks a command outcome summary.
	EventResult EventKind = "result"

	// EventChatUser marks a user chat turn.
	EventChatUser EventKind = "chat_user"

	// EventChatReply marks an assistant chat reply.
	EventChatReply EventKind = "chat_reply"

	// EventSpoken marks text that was sent to the speaker.
	EventSpoken EventKind = "spoken"

	// EventError marks a recoverable session error.
	EventError EventKind = "error"
)

// Event is one observable session occurrence.
type Event struct {
	Time  time.Time
	Kind  EventKind
	State State
	Text  string
}

// Observer receives session events. Implementations must not block; the
// session emits events from its single orchestration goroutine.
type Observer interface {
	Observe(Event)
}

// MultiObserver fans one event out to several observers.
type MultiObserver []Observer

// Observe implements Observer.
func (m MultiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// LogObserver writes events as structured log lines.
type LogObserver struct{}

// Observe implements Observer.
func (LogObserver) Observe(e Event) {
	ev := log.Info()
	if e.Kind == EventError {
		ev = log.Warn()
	}
	ev.Str("kind", string(e.Kind)).
		Str("state", e.State.String()).
		Str("text", e.Text).
		Msg("session event")
}

// consoleStyles holds the event stream's terminal styling.
type consoleStyles struct {
	state   lipgloss.Style
	heard   lipgloss.Style
	command lipgloss.Style
	output  lipgloss.Style
	spoken  lipgloss.Style
	err     lipgloss.Style
}

func defaultConsoleStyles() consoleStyles {
	return consoleStyles{
		state:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		heard:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		command: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		output:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		spoken:  lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		err:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// ConsoleObserver renders events as a one-line-per-event stream.
type ConsoleObserver struct {
	out    io.Writer
	styles consoleStyles
}

// NewConsoleObserver creates a console observer writing to out.
func NewConsoleObserver(out io.Writer) *ConsoleObserver {
	return &ConsoleObserver{out: out, styles: defaultConsoleStyles()}
}

// Observe implements Observer.
func (c *ConsoleObserver) Observe(e Event) {
	var line string
	switch e.Kind {
	case EventState:
		line = c.styles.state.Render("· " + e.Text)
	case EventHeard:
		line = c.styles.heard.Render("» " + e.Text)
	case EventCommand:
		line = c.styles.command.Render("$ " + e.Text)
	case EventOutput:
		line = c.styles.output.Render("  " + e.Text)
	case EventResult:
		line = c.styles.command.Render("= " + e.Text)
	case EventChatUser:
		line = c.styles.heard.Render("you: " + e.Text)
	case EventChatReply:
		line = c.styles.spoken.Render("assistant: " + e.Text)
	case EventSpoken:
		line = c.styles.spoken.Render("♪ " + e.Text)
	case EventError:
		line = c.styles.err.Render("! " + e.Text)
	default:
		line = e.Text
	}
	fmt.Fprintln(c.out, line)
}

// StoreObserver persists the interactions a reader would want back:
// utterances, commands, results, chat turns, and spoken text. State
// transitions and raw output lines stay out of the database.
type StoreObserver struct {
	store     *store.Store
	sessionID string
}

// NewStoreObserver creates an observer recording into the interaction log.
func NewStoreObserver(s *store.Store, sessionID string) *StoreObserver {
	return &StoreObserver{store: s, sessionID: sessionID}
}

// Observe implements Observer.
func (o *StoreObserver) Observe(e Event) {
	var kind store.Kind
	switch e.Kind {
	case EventHeard:
		kind = store.KindUtterance
	case EventCommand:
		kind = store.KindCommand
	case EventResult:
		kind = store.KindResult
	case EventChatUser:
		kind = store.KindChatUser
	case EventChatReply:
		kind = store.KindChatReply
	case EventSpoken:
		kind = store.KindSpoken
	default:
		return
	}
	if err := o.store.Record(o.sessionID, kind, e.Text); err != nil {
		log.Warn().Err(err).Msg("failed to record interaction")
	}
}
