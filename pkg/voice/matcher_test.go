package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_PrimaryHotword(t *testing.T) {
	m := NewMatcher(DefaultHotwordConfig())

	match, ok := m.Match("nebula tell me about the Maratha Empire")
	require.True(t, ok)
	assert.Equal(t, "nebula", match.Alias)
	assert.Equal(t, "tell me about the Maratha Empire", match.Remainder)
}

func TestMatcher_AliasWithinTolerance(t *testing.T) {
	cfg := HotwordConfig{
		Hotword:   "nebula",
		Aliases:   []string{"neba"},
		Tolerance: 1,
	}
	m := NewMatcher(cfg)

	match, ok := m.Match("neba shutdown")
	require.True(t, ok)
	assert.Equal(t, "neba", match.Alias)
	assert.Equal(t, "shutdown", match.Remainder)

	// One edit away from the alias still matches.
	match, ok = m.Match("nebba shutdown")
	require.True(t, ok)
	assert.Equal(t, "shutdown", match.Remainder)
}

func TestMatcher_FuzzyNearMisses(t *testing.T) {
	m := NewMatcher(DefaultHotwordConfig())

	tests := []struct {
		name      string
		utterance string
		wantMatch bool
	}{
		{"exact", "nebula what time is it", true},
		{"missing vowel", "nebla what time is it", true},
		{"trailing s", "nebulas what time is it", true},
		{"unrelated word", "banana what time is it", false},
		{"hotword buried mid sentence", "I was reading about nebula formation", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := m.Match(tt.utterance)
			assert.Equal(t, tt.wantMatch, ok)
		})
	}
}

func TestMatcher_BareHotwordEmptyRemainder(t *testing.T) {
	m := NewMatcher(DefaultHotwordConfig())

	match, ok := m.Match("nebula")
	require.True(t, ok, "bare hotword must still match")
	assert.Empty(t, match.Remainder)

	match, ok = m.Match("Nebula.")
	require.True(t, ok, "punctuation must not defeat the match")
	assert.Empty(t, match.Remainder)
}

func TestMatcher_ToleratesOneLeadingNoiseToken(t *testing.T) {
	m := NewMatcher(DefaultHotwordConfig())

	match, ok := m.Match("hey nebula open the garage")
	require.True(t, ok)
	assert.Equal(t, "open the garage", match.Remainder)
}

func TestMatcher_CaseAndPunctuationInsensitive(t *testing.T) {
	m := NewMatcher(DefaultHotwordConfig())

	match, ok := m.Match("Nebula, what's the weather?")
	require.True(t, ok)
	assert.Equal(t, "what's the weather?", match.Remainder)
}

func TestMatcher_ZeroToleranceExactOnly(t *testing.T) {
	m := NewMatcher(HotwordConfig{Hotword: "bot", Tolerance: 0})

	_, ok := m.Match("bought restart the service")
	assert.False(t, ok)

	match, ok := m.Match("bot restart the service")
	require.True(t, ok)
	assert.Equal(t, "restart the service", match.Remainder)
}

func TestMatcher_AcousticNeighborWithTolerance(t *testing.T) {
	// "bought" for "bot" is an acoustic near miss at edit distance 3 on
	// the raw strings; an alias entry is the supported way to catch it.
	m := NewMatcher(HotwordConfig{Hotword: "bot", Aliases: []string{"bought"}, Tolerance: 1})

	match, ok := m.Match("bought restart the service")
	require.True(t, ok)
	assert.Equal(t, "bought", match.Alias)
	assert.Equal(t, "restart the service", match.Remainder)
}

func TestMatcher_Deterministic(t *testing.T) {
	m := NewMatcher(DefaultHotwordConfig())

	first, ok1 := m.Match("neb list files")
	second, ok2 := m.Match("neb list files")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}
