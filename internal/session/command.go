package session

// PendingCommand is the single in-flight command candidate. Created on
// hotword detection with a non-empty remainder, destroyed on confirm or
// cancel. The edited text may be replaced any number of times while
// confirming; the original transcript is kept for the interaction log.
type PendingCommand struct {
	// Original is the remainder as first heard.
	Original string

	// Edited is the text that will execute on confirmation.
	Edited string

	// Confirmed flips once, when the user accepts the edited text.
	Confirmed bool
}

func newPendingCommand(remainder string) *PendingCommand {
	return &PendingCommand{Original: remainder, Edited: remainder}
}

// Replace swaps the edited text for a spoken correction.
func (p *PendingCommand) Replace(text string) {
	p.Edited = text
}
