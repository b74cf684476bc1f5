// Package voice provides voice-session types and utilities for Nebula.
// profile.go defines the named recognizer timing profiles.
package voice

import (
	"fmt"
	"time"
)

// Profile is a set of recognizer timing parameters. The session switches
// the active profile when entering and leaving chat dictation.
type Profile struct {
	// Name identifies the profile ("responsive", "balanced", "dictation").
	Name string

	// StartTimeout is how long to wait for speech to begin before the
	// listen attempt times out.
	StartTimeout time.Duration

	// PhraseTimeLimit is the hard cap on a single utterance capture.
	PhraseTimeLimit time.Duration

	// PauseThreshold is the silence length that ends a phrase once speech
	// has been heard.
	PauseThreshold time.Duration

	// NonSpeakingDuration is the silence padding kept around the phrase.
	NonSpeakingDuration time.Duration

	// MinPhraseDuration discards blips shorter than this as noise.
	MinPhraseDuration time.Duration

	// EnergyThreshold is the RMS level above which audio counts as speech.
	EnergyThreshold int
}

// ResponsiveProfile favors low latency for short commands.
func ResponsiveProfile() Profile {
	return Profile{
		Name:                "responsive",
		StartTimeout:        4 * time.Second,
		PhraseTimeLimit:     8 * time.Second,
		PauseThreshold:      500 * time.Millisecond,
		NonSpeakingDuration: 300 * time.Millisecond,
		MinPhraseDuration:   200 * time.Millisecond,
		EnergyThreshold:     300,
	}
}

// BalancedProfile is the default for command listening.
func BalancedProfile() Profile {
	return Profile{
		Name:                "balanced",
		StartTimeout:        6 * time.Second,
		PhraseTimeLimit:     12 * time.Second,
		PauseThreshold:      800 * time.Millisecond,
		NonSpeakingDuration: 500 * time.Millisecond,
		MinPhraseDuration:   250 * time.Millisecond,
		EnergyThreshold:     300,
	}
}

// DictationProfile tolerates long pauses for free-form chat turns.
func DictationProfile() Profile {
	return Profile{
		Name:                "dictation",
		StartTimeout:        10 * time.Second,
		PhraseTimeLimit:     30 * time.Second,
		PauseThreshold:      1500 * time.Millisecond,
		NonSpeakingDuration: 800 * time.Millisecond,
		MinPhraseDuration:   300 * time.Millisecond,
		EnergyThreshold:     280,
	}
}

// ProfileByName resolves a named profile.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "responsive":
		return ResponsiveProfile(), nil
	case "balanced", "":
		return BalancedProfile(), nil
	case "dictation":
		return DictationProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown recognizer profile %q", name)
	}
}
