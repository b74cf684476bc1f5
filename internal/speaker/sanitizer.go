// Package speaker turns assistant text into audible speech while keeping
// the microphone gated against echo.
package speaker

import (
	"regexp"
	"strings"
	"sync"
)

// Sanitizer rewrites model output into speech-friendly text: markdown and
// terminal escapes are stripped, common symbols become words, emoji are
// dropped. Chat backends return text meant for a screen; none of it
// should be read aloud literally.
type Sanitizer struct {
	patterns *sanitizerPatterns
	once     sync.Once
}

type sanitizerPatterns struct {
	ansiEscape *regexp.Regexp
	control    *regexp.Regexp

	codeBlock    *regexp.Regexp
	inlineCode   *regexp.Regexp
	header       *regexp.Regexp
	link         *regexp.Regexp
	image        *regexp.Regexp
	emphasis     *regexp.Regexp
	bulletList   *regexp.Regexp
	numberedList *regexp.Regexp
	blockquote   *regexp.Regexp
	tableRow     *regexp.Regexp

	percentage *regexp.Regexp
	ampersand  *regexp.Regexp
	ellipsis   *regexp.Regexp
	emoji      *regexp.Regexp

	spaces *regexp.Regexp
}

// NewSanitizer creates a sanitizer; patterns compile lazily on first use.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

func (s *Sanitizer) init() {
	s.once.Do(func() {
		s.patterns = &sanitizerPatterns{
			ansiEscape: regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`),
			control:    regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`),

			codeBlock:    regexp.MustCompile("(?s)```[^`]*```"),
			inlineCode:   regexp.MustCompile("`([^`]+)`"),
			header:       regexp.MustCompile(`(?m)^#{1,6}\s+`),
			link:         regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`),
			image:        regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`),
			emphasis:     regexp.MustCompile(`(\*\*|__|\*|_|~~)([^*_~]+?)(\*\*|__|\*|_|~~)`),
			bulletList:   regexp.MustCompile(`(?m)^\s*[-*+]\s+`),
			numberedList: regexp.MustCompile(`(?m)^\s*\d+\.\s+`),
			blockquote:   regexp.MustCompile(`(?m)^>\s*`),
			tableRow:     regexp.MustCompile(`(?m)^\|?[-:| ]+\|?$`),

			percentage: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`),
			ampersand:  regexp.MustCompile(`\s*&\s*`),
			ellipsis:   regexp.MustCompile(`\.{3,}`),
			emoji:      regexp.MustCompile(`[\x{1F300}-\x{1F9FF}]|[\x{2600}-\x{27BF}]|[\x{1F1E0}-\x{1F1FF}]|[\x{FE00}-\x{FE0F}]`),

			spaces: regexp.MustCompile(`[ \t]+`),
		}
	})
}

// Sanitize returns the speech-ready form of text. An empty result means
// there is nothing worth saying (for example, a response that was only a
// code block).
func (s *Sanitizer) Sanitize(text string) string {
	s.init()
	p := s.patterns

	text = p.ansiEscape.ReplaceAllString(text, "")
	text = p.control.ReplaceAllString(text, "")

	text = p.codeBlock.ReplaceAllString(text, " code omitted. ")
	text = p.image.ReplaceAllString(text, "")
	text = p.link.ReplaceAllString(text, "$1")
	text = p.inlineCode.ReplaceAllString(text, "$1")
	text = p.header.ReplaceAllString(text, "")
	text = p.tableRow.ReplaceAllString(text, "")
	text = p.bulletList.ReplaceAllString(text, "")
	text = p.numberedList.ReplaceAllString(text, "")
	text = p.blockquote.ReplaceAllString(text, "")

	// Nested emphasis needs a second pass (e.g. **bold *italic* bold**).
	for i := 0; i < 2; i++ {
		text = p.emphasis.ReplaceAllString(text, "$2")
	}

	text = p.percentage.ReplaceAllString(text, "$1 percent")
	text = p.ampersand.ReplaceAllString(text, " and ")
	text = p.ellipsis.ReplaceAllString(text, ". ")
	text = p.emoji.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "\n", " ")
	text = p.spaces.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
