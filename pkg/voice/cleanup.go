// Package voice provides voice-session types and utilities for Nebula.
// cleanup.go normalizes raw transcription output before it reaches the
// hotword matcher. Transcription engines routinely emit filler words,
// duplicated tokens and bracketed sound annotations around the phrase the
// user actually spoke.
package voice

import (
	"regexp"
	"strings"
)

// Cleaner normalizes transcripts and interprets confirmation replies.
type Cleaner struct {
	fillerWords map[string]bool
	annotations *regexp.Regexp
	spaces      *regexp.Regexp

	// misheard maps phrases the transcription engine commonly gets wrong
	// during confirmation to the reply the user meant.
	misheard map[string]string

	yesWords    map[string]bool
	cancelWords map[string]bool
}

// NewCleaner creates a cleaner with the stock filler and mishearing sets.
func NewCleaner() *Cleaner {
	return &Cleaner{
		fillerWords: map[string]bool{
			"um": true, "uh": true, "uhm": true, "hmm": true,
			"er": true, "ah": true, "eh": true,
		},
		annotations: regexp.MustCompile(`(?i)[\[(][^)\]]*[\])]`),
		spaces:      regexp.MustCompile(`\s+`),
		misheard: map[string]string{
			"guess":    "yes",
			"yet":      "yes",
			"yas":      "yes",
			"council":  "cancel",
			"counsel":  "cancel",
			"go head":  "go ahead",
			"go had":   "go ahead",
			"stock":    "stop",
			"no pe":    "nope",
			"not":      "no",
			"due it":   "do it",
			"run it's": "run it",
		},
		yesWords: map[string]bool{
			"yes": true, "yeah": true, "yep": true, "yup": true,
			"confirm": true, "confirmed": true, "sure": true,
			"ok": true, "okay": true, "go ahead": true,
			"do it": true, "run it": true, "proceed": true,
		},
		cancelWords: map[string]bool{
			"no": true, "nope": true, "nah": true,
			"cancel": true, "stop": true, "never mind": true,
			"nevermind": true, "forget it": true, "abort": true,
		},
	}
}

// Clean normalizes a transcript: bracketed sound annotations and leading
// filler words are removed, repeated tokens collapsed, whitespace squashed.
func (c *Cleaner) Clean(text string) string {
	text = c.annotations.ReplaceAllString(text, " ")
	text = strings.Trim(text, `"' `)
	text = c.spaces.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	// Collapse consecutive duplicates ("the the weather" -> "the weather").
	deduped := words[:1]
	for _, w := range words[1:] {
		if !strings.EqualFold(w, deduped[len(deduped)-1]) {
			deduped = append(deduped, w)
		}
	}

	// Strip leading fillers, but never strip the entire phrase.
	start := 0
	for start < len(deduped)-1 {
		w := strings.ToLower(strings.Trim(deduped[start], ",.!?"))
		if !c.fillerWords[w] {
			break
		}
		start++
	}

	return strings.Join(deduped[start:], " ")
}

// Reply classifies a confirmation utterance.
type Reply int

const (
	// ReplyOther means the utterance is neither assent nor cancellation.
	ReplyOther Reply = iota

	// ReplyYes means the user confirmed.
	ReplyYes

	// ReplyCancel means the user declined.
	ReplyCancel
)

// Confirmation interprets a transcript heard while a command is awaiting
// confirmation, correcting common mishearings first.
func (c *Cleaner) Confirmation(text string) Reply {
	norm := strings.ToLower(strings.TrimSpace(text))
	norm = strings.Trim(norm, ",.!?")
	if corrected, ok := c.misheard[norm]; ok {
		norm = corrected
	}

	switch {
	case c.yesWords[norm]:
		return ReplyYes
	case c.cancelWords[norm]:
		return ReplyCancel
	default:
		return ReplyOther
	}
}
