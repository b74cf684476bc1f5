package speaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "The lights are on.",
			want: "The lights are on.",
		},
		{
			name: "markdown emphasis stripped",
			in:   "**Done!** The lights are _on_.",
			want: "Done! The lights are on.",
		},
		{
			name: "ansi escapes stripped",
			in:   "\x1b[32mok\x1b[0m all services healthy",
			want: "ok all services healthy",
		},
		{
			name: "code block replaced",
			in:   "Run this:\n```\nls -la\n```",
			want: "Run this: code omitted.",
		},
		{
			name: "inline code unwrapped",
			in:   "Use the `restart` subcommand.",
			want: "Use the restart subcommand.",
		},
		{
			name: "link keeps label only",
			in:   "See [the docs](https://example.com/docs) for details.",
			want: "See the docs for details.",
		},
		{
			name: "headers and lists flattened",
			in:   "# Status\n- disk ok\n- network ok",
			want: "Status disk ok network ok",
		},
		{
			name: "percent spoken",
			in:   "Battery at 87%.",
			want: "Battery at 87 percent.",
		},
		{
			name: "ampersand spoken",
			in:   "Backup & restore finished.",
			want: "Backup and restore finished.",
		},
		{
			name: "emoji dropped",
			in:   "All done 🎉",
			want: "All done",
		},
		{
			name: "emoji only yields nothing",
			in:   "🎉✅",
			want: "",
		},
		{
			name: "control characters stripped",
			in:   "bell\x07 and tab\tkept as space",
			want: "bell and tab kept as space",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.in))
		})
	}
}
