package voice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListeningGate_StartsOpen(t *testing.T) {
	g := NewListeningGate()
	assert.True(t, g.IsOpen())
	assert.True(t, g.ReopenNotBefore().IsZero())
}

func TestListeningGate_CloseThenScheduleReopen(t *testing.T) {
	g := NewListeningGate()

	g.Close()
	assert.False(t, g.IsOpen())

	g.ScheduleReopen(30 * time.Millisecond)
	assert.False(t, g.IsOpen(), "gate must stay closed during the cooldown window")
	assert.False(t, g.ReopenNotBefore().IsZero())

	time.Sleep(60 * time.Millisecond)
	assert.True(t, g.IsOpen())
}

func TestListeningGate_ClosedForWholeCooldownWindow(t *testing.T) {
	g := NewListeningGate()

	g.Close()
	g.ScheduleReopen(50 * time.Millisecond)
	reopenAt := g.ReopenNotBefore()

	// Sample the gate until the deadline: it must never read open early.
	for time.Now().Before(reopenAt.Add(-5 * time.Millisecond)) {
		assert.False(t, g.IsOpen(), "gate observed open before reopen-not-before")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListeningGate_WaitBlocksUntilReopen(t *testing.T) {
	g := NewListeningGate()
	g.Close()
	g.ScheduleReopen(30 * time.Millisecond)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, g.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.True(t, g.IsOpen())
}

func TestListeningGate_WaitReturnsImmediatelyWhenOpen(t *testing.T) {
	g := NewListeningGate()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NoError(t, g.Wait(ctx))
}

func TestListeningGate_WaitHonorsContext(t *testing.T) {
	g := NewListeningGate()
	g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListeningGate_ForceOpenCancelsCooldown(t *testing.T) {
	g := NewListeningGate()
	g.Close()
	g.ScheduleReopen(time.Hour)

	g.ForceOpen()
	assert.True(t, g.IsOpen())
	assert.True(t, g.ReopenNotBefore().IsZero())
}

func TestListeningGate_CloseCancelsPendingReopen(t *testing.T) {
	g := NewListeningGate()
	g.Close()
	g.ScheduleReopen(20 * time.Millisecond)

	// A new close supersedes the scheduled reopen.
	g.Close()
	time.Sleep(50 * time.Millisecond)
	assert.False(t, g.IsOpen())

	g.ForceOpen()
}

func TestListeningGate_ZeroCooldownReopensImmediately(t *testing.T) {
	g := NewListeningGate()
	g.Close()
	g.ScheduleReopen(0)
	assert.True(t, g.IsOpen())
}

func TestListeningGate_ManyWaitersAllWake(t *testing.T) {
	g := NewListeningGate()
	g.Close()

	done := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			done <- g.Wait(ctx)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	g.ScheduleReopen(0)

	for i := 0; i < 5; i++ {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("waiter did not wake after reopen")
		}
	}
}
