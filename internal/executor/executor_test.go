package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteStreamsOutput(t *testing.T) {
	r := NewShellRunner("")

	var lines []string
	res, err := r.Execute(context.Background(), "echo one; echo two", func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, lines)
	assert.Equal(t, []string{"one", "two"}, res.Lines)
	assert.Zero(t, res.ExitCode)
	assert.True(t, res.Succeeded())
	assert.Equal(t, int64(1), r.Executed())
}

func TestExecuteCapturesStderr(t *testing.T) {
	r := NewShellRunner("")

	res, err := r.Execute(context.Background(), "echo oops 1>&2", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"oops"}, res.Lines)
}

func TestExecuteNonZeroExitIsAResult(t *testing.T) {
	r := NewShellRunner("")

	res, err := r.Execute(context.Background(), "echo broken; exit 3", nil)
	require.NoError(t, err, "non-zero exit is a result, not an error")
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Succeeded())
	assert.Equal(t, int64(1), r.Failed())
}

func TestExecuteHonorsContext(t *testing.T) {
	r := NewShellRunner("")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Execute(ctx, "sleep 10", nil)
	require.Error(t, err)
}

func TestExecuteSingleFlight(t *testing.T) {
	r := NewShellRunner("")

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Execute(context.Background(), "echo go; sleep 0.5", func(string) {
			close(started)
		})
	}()

	<-started
	_, err := r.Execute(context.Background(), "echo too late", nil)
	assert.ErrorIs(t, err, ErrBusy)
	wg.Wait()
}

func TestResultSummary(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{
			name: "success with output",
			res:  Result{Lines: []string{"42 files", "done"}},
			want: "Command finished. 42 files",
		},
		{
			name: "success without output",
			res:  Result{},
			want: "Command finished.",
		},
		{
			name: "failure",
			res:  Result{Lines: []string{"no such file"}, ExitCode: 2},
			want: "Command failed with exit status 2. no such file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Summary())
		})
	}
}

func TestResultFull(t *testing.T) {
	res := Result{Lines: []string{"first", "second"}, ExitCode: 1}
	assert.Equal(t, "first. second. Exit status 1.", res.Full())

	empty := Result{}
	assert.Equal(t, "Command finished with no output.", empty.Full())
}
