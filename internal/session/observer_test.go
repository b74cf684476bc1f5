package session

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/nebula/internal/store"
)

func TestConsoleObserverOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleObserver(&buf)

	c.Observe(Event{Kind: EventHeard, Text: "nebula open the garage"})
	c.Observe(Event{Kind: EventOutput, Text: "door opening"})
	c.Observe(Event{Kind: EventError, Text: "synthesis failed"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "nebula open the garage")
	assert.Contains(t, string(lines[2]), "synthesis failed")
}

func TestStoreObserverRecordsOnlyDurableKinds(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "interactions.db"))
	require.NoError(t, err)
	defer s.Close()

	o := NewStoreObserver(s, "sess-1")
	o.Observe(Event{Time: time.Now(), Kind: EventHeard, Text: "nebula uptime"})
	o.Observe(Event{Time: time.Now(), Kind: EventState, Text: "listening"})
	o.Observe(Event{Time: time.Now(), Kind: EventOutput, Text: "up 3 days"})
	o.Observe(Event{Time: time.Now(), Kind: EventResult, Text: "Command finished."})

	recent, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2, "state and output lines stay out of the store")
	assert.Equal(t, store.KindResult, recent[0].Kind)
	assert.Equal(t, store.KindUtterance, recent[1].Kind)
}

func TestMultiObserverFansOut(t *testing.T) {
	a := &recordingObserver{}
	b := &recordingObserver{}
	m := MultiObserver{a, b}

	m.Observe(Event{Kind: EventSpoken, Text: "hello"})

	require.Len(t, a.all(), 1)
	require.Len(t, b.all(), 1)
	assert.Equal(t, "hello", b.all()[0].Text)
}
