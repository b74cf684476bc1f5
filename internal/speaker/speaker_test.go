package speaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/nebula/pkg/voice"
)

type fakeBackend struct {
	name        string
	unavailable bool
	err         error

	mu        sync.Mutex
	calls     int
	probes    int
	spoken    []string
	gateOpen  []bool
	observeFn func()
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Available(ctx context.Context) bool {
	b.mu.Lock()
	b.probes++
	b.mu.Unlock()
	return !b.unavailable
}

func (b *fakeBackend) Speak(ctx context.Context, text string) error {
	b.mu.Lock()
	b.calls++
	b.spoken = append(b.spoken, text)
	b.mu.Unlock()
	if b.observeFn != nil {
		b.observeFn()
	}
	return b.err
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *fakeBackend) probeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probes
}

func testConfig() Config {
	return Config{Cooldown: 50 * time.Millisecond, PostSpeechDelay: 0}
}

func waitForOpen(t *testing.T, gate *voice.ListeningGate) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, gate.Wait(ctx), "gate never reopened")
}

func TestSpeakGatesMicrophoneDuringPlayback(t *testing.T) {
	gate := voice.NewListeningGate()
	backend := &fakeBackend{name: "primary"}

	var openDuringPlayback bool
	backend.observeFn = func() { openDuringPlayback = gate.IsOpen() }

	s := New(testConfig(), gate, backend)
	require.NoError(t, s.Speak(context.Background(), "hello there"))

	assert.False(t, openDuringPlayback, "gate must be closed while audio plays")
	assert.False(t, gate.IsOpen(), "gate stays closed for the cooldown")
	waitForOpen(t, gate)
}

func TestSpeakSanitizesBeforeSynthesis(t *testing.T) {
	gate := voice.NewListeningGate()
	backend := &fakeBackend{name: "primary"}
	s := New(testConfig(), gate, backend)

	require.NoError(t, s.Speak(context.Background(), "**All** done 🎉"))
	require.Len(t, backend.spoken, 1)
	assert.Equal(t, "All done", backend.spoken[0])
}

func TestSpeakSkipsWhenNothingAudible(t *testing.T) {
	gate := voice.NewListeningGate()
	backend := &fakeBackend{name: "primary"}
	s := New(testConfig(), gate, backend)

	require.NoError(t, s.Speak(context.Background(), "🎉✅"))
	assert.Zero(t, backend.callCount())
	assert.True(t, gate.IsOpen(), "gate untouched when nothing was spoken")
}

func TestSpeakFallsBackWhenPrimaryFails(t *testing.T) {
	gate := voice.NewListeningGate()
	primary := &fakeBackend{name: "http", err: errors.New("connection refused")}
	fallback := &fakeBackend{name: "espeak-ng"}

	s := New(testConfig(), gate, primary, fallback)
	require.NoError(t, s.Speak(context.Background(), "fallback please"))

	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, fallback.callCount())
	assert.Equal(t, int64(1), s.Spoken())
	assert.Equal(t, int64(1), s.Failures())
}

func TestSpeakSkipsUnavailableBackend(t *testing.T) {
	gate := voice.NewListeningGate()
	primary := &fakeBackend{name: "http", unavailable: true}
	fallback := &fakeBackend{name: "espeak-ng"}

	s := New(testConfig(), gate, primary, fallback)
	require.NoError(t, s.Speak(context.Background(), "skip the dead one"))

	assert.Zero(t, primary.callCount(), "unavailable backend must not be invoked")
	assert.Equal(t, 1, fallback.callCount())
}

func TestSpeakPrefersLastWorkingBackend(t *testing.T) {
	gate := voice.NewListeningGate()
	primary := &fakeBackend{name: "http", err: errors.New("down")}
	fallback := &fakeBackend{name: "espeak-ng"}
	s := New(testConfig(), gate, primary, fallback)

	require.NoError(t, s.Speak(context.Background(), "first"))
	waitForOpen(t, gate)
	require.NoError(t, s.Speak(context.Background(), "second"))

	assert.Equal(t, 1, primary.callCount(), "dead primary should not be retried first")
	assert.Equal(t, 2, fallback.callCount())
}

func TestAvailabilityProbedOnceAtConstruction(t *testing.T) {
	gate := voice.NewListeningGate()
	backend := &fakeBackend{name: "primary"}
	s := New(testConfig(), gate, backend)
	assert.Equal(t, 1, backend.probeCount())

	require.NoError(t, s.Speak(context.Background(), "one"))
	waitForOpen(t, gate)
	require.NoError(t, s.Speak(context.Background(), "two"))

	assert.Equal(t, 1, backend.probeCount(), "a healthy backend is not re-probed per utterance")
	assert.Equal(t, 2, backend.callCount())
}

func TestFailedBackendIsReprobed(t *testing.T) {
	gate := voice.NewListeningGate()
	primary := &fakeBackend{name: "http", err: errors.New("down")}
	fallback := &fakeBackend{name: "espeak-ng"}
	s := New(testConfig(), gate, primary, fallback)

	require.NoError(t, s.Speak(context.Background(), "first"))

	// Construction probe plus the post-failure refresh.
	assert.Equal(t, 2, primary.probeCount())
	assert.Equal(t, 1, fallback.probeCount())
}

func TestSpeakReopensGateAfterTotalFailure(t *testing.T) {
	gate := voice.NewListeningGate()
	primary := &fakeBackend{name: "http", err: errors.New("down")}
	fallback := &fakeBackend{name: "espeak-ng", err: errors.New("also down")}

	s := New(testConfig(), gate, primary, fallback)
	err := s.Speak(context.Background(), "nobody hears this")
	assert.ErrorIs(t, err, ErrUnavailable)

	// The failed attempt must never leave the session deaf.
	waitForOpen(t, gate)
}

func TestSpeakAllBackendsUnavailable(t *testing.T) {
	gate := voice.NewListeningGate()
	s := New(testConfig(), gate,
		&fakeBackend{name: "http", unavailable: true},
		&fakeBackend{name: "espeak-ng", unavailable: true},
	)

	assert.ErrorIs(t, s.Speak(context.Background(), "hello"), ErrUnavailable)
	waitForOpen(t, gate)
}
