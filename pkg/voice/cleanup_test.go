package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleaner_Clean(t *testing.T) {
	c := NewCleaner()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "nebula list files", "nebula list files"},
		{"leading fillers", "um uh nebula list files", "nebula list files"},
		{"repeated words", "the the weather today", "the weather today"},
		{"sound annotation", "[music] nebula stop", "nebula stop"},
		{"parenthetical", "(coughs) nebula stop", "nebula stop"},
		{"extra whitespace", "  nebula   stop  ", "nebula stop"},
		{"quotes", `"nebula stop"`, "nebula stop"},
		{"empty", "", ""},
		{"only annotation", "[silence]", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Clean(tt.in))
		})
	}
}

func TestCleaner_CleanKeepsLoneFillerWord(t *testing.T) {
	// A single remaining token is never stripped, even if it looks like
	// filler, so short confirmations survive.
	c := NewCleaner()
	assert.Equal(t, "um", c.Clean("um"))
}

func TestCleaner_Confirmation(t *testing.T) {
	c := NewCleaner()

	tests := []struct {
		in   string
		want Reply
	}{
		{"yes", ReplyYes},
		{"Yes.", ReplyYes},
		{"yeah", ReplyYes},
		{"go ahead", ReplyYes},
		{"do it", ReplyYes},
		{"no", ReplyCancel},
		{"cancel", ReplyCancel},
		{"never mind", ReplyCancel},
		{"echo hello instead", ReplyOther},
		{"", ReplyOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Confirmation(tt.in))
		})
	}
}

func TestCleaner_ConfirmationCorrectsMishearings(t *testing.T) {
	c := NewCleaner()

	assert.Equal(t, ReplyYes, c.Confirmation("guess"), `"guess" is a common mishearing of "yes"`)
	assert.Equal(t, ReplyCancel, c.Confirmation("council"), `"council" is a common mishearing of "cancel"`)
	assert.Equal(t, ReplyYes, c.Confirmation("go head"))
}
