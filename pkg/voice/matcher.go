// Package voice provides voice-session types and utilities for Nebula.
// matcher.go implements fuzzy hotword detection over transcribed text.
package voice

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// HotwordConfig describes the trigger word the matcher looks for.
// It is immutable for the lifetime of a session.
type HotwordConfig struct {
	// Hotword is the primary trigger word (e.g. "nebula").
	Hotword string

	// Aliases are alternate spellings the transcription service commonly
	// produces for the hotword (e.g. "neba", "nebula's").
	Aliases []string

	// Tolerance is the maximum edit distance at which a leading token
	// window still counts as the hotword. Zero means exact match only.
	Tolerance int
}

// DefaultHotwordConfig returns the stock hotword configuration.
func DefaultHotwordConfig() HotwordConfig {
	return HotwordConfig{
		Hotword:   "nebula",
		Aliases:   []string{"neba", "neb", "nebby", "nebula's"},
		Tolerance: 2,
	}
}

// Match is a positive hotword detection result.
type Match struct {
	// Alias is the candidate (primary hotword or alias) that matched.
	Alias string

	// Remainder is the utterance with the matched span removed and
	// whitespace trimmed. It may be empty: a bare hotword is a valid
	// match with nothing attached.
	Remainder string
}

// Matcher detects the configured hotword at the start of an utterance.
// It is deterministic, stateless and safe for concurrent use.
type Matcher struct {
	config     HotwordConfig
	candidates []candidate
}

type candidate struct {
	display string   // as configured
	tokens  []string // normalized tokens
	joined  string
}

// NewMatcher builds a matcher for the given hotword configuration.
func NewMatcher(config HotwordConfig) *Matcher {
	m := &Matcher{config: config}

	add := func(word string) {
		toks := normalizeTokens(word)
		if len(toks) == 0 {
			return
		}
		m.candidates = append(m.candidates, candidate{
			display: word,
			tokens:  toks,
			joined:  strings.Join(toks, " "),
		})
	}

	add(config.Hotword)
	for _, alias := range config.Aliases {
		add(alias)
	}
	return m
}

// maxLeadOffset is how many leading noise tokens the matcher skips past
// when searching for the hotword window.
const maxLeadOffset = 1

// Match reports whether the utterance begins with the hotword (or an
// alias) within the configured edit-distance tolerance. The boolean result
// distinguishes "no match" from a match with an empty remainder.
func (m *Matcher) Match(utterance string) (Match, bool) {
	rawTokens := strings.Fields(utterance)
	normTokens := make([]string, len(rawTokens))
	for i, tok := range rawTokens {
		normTokens[i] = normalizeToken(tok)
	}

	best := -1
	bestDist := 0
	bestEnd := 0

	for offset := 0; offset <= maxLeadOffset && offset < len(normTokens); offset++ {
		for i, cand := range m.candidates {
			end := offset + len(cand.tokens)
			if end > len(normTokens) {
				continue
			}
			window := strings.Join(normTokens[offset:end], " ")
			if window == "" {
				continue
			}
			dist := levenshtein.ComputeDistance(window, cand.joined)
			if dist > m.toleranceFor(cand) {
				continue
			}
			if best == -1 || dist < bestDist || (dist == bestDist && i < best) {
				best = i
				bestDist = dist
				bestEnd = end
			}
		}
		if best != -1 {
			break
		}
	}

	if best == -1 {
		return Match{}, false
	}

	remainder := strings.TrimSpace(strings.Join(rawTokens[bestEnd:], " "))
	return Match{
		Alias:     m.candidates[best].display,
		Remainder: remainder,
	}, true
}

// toleranceFor caps the configured tolerance at one third of the candidate
// length, so short aliases stay strict ("neb" must not absorb "hey").
func (m *Matcher) toleranceFor(cand candidate) int {
	tol := m.config.Tolerance
	if limit := len(cand.joined) / 3; tol > limit {
		tol = limit
	}
	return tol
}

// normalizeTokens lowercases and strips punctuation from every token.
func normalizeTokens(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if norm := normalizeToken(f); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

// normalizeToken lowercases a token and drops punctuation and symbols.
func normalizeToken(tok string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(tok) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
