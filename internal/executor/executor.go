// Package executor dispatches confirmed instructions to the shell and
// reports their output for speaking.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrBusy means a command is already in flight. The session holds a
// single-flight invariant, so hitting this indicates a caller bug rather
// than an expected race.
var ErrBusy = errors.New("executor: a command is already running")

// maxStoredLines caps how much command output is retained on the result.
// Streaming callbacks still see every line.
const maxStoredLines = 500

// Result is the outcome of one command execution. A non-zero exit status
// is a normal result, not an error; only launch and cancellation failures
// surface as errors from Execute.
type Result struct {
	Lines    []string
	ExitCode int
	Duration time.Duration
}

// Succeeded reports whether the command exited zero.
func (r *Result) Succeeded() bool { return r.ExitCode == 0 }

// Summary renders a short spoken form: outcome plus the first output line.
func (r *Result) Summary() string {
	var b strings.Builder
	if r.Succeeded() {
		b.WriteString("Command finished.")
	} else {
		fmt.Fprintf(&b, "Command failed with exit status %d.", r.ExitCode)
	}
	if len(r.Lines) > 0 {
		b.WriteString(" ")
		b.WriteString(r.Lines[0])
	}
	return b.String()
}

// Full renders the complete output for speaking.
func (r *Result) Full() string {
	if len(r.Lines) == 0 {
		if r.Succeeded() {
			return "Command finished with no output."
		}
		return fmt.Sprintf("Command failed with exit status %d and no output.", r.ExitCode)
	}
	text := strings.Join(r.Lines, ". ")
	if !r.Succeeded() {
		text = fmt.Sprintf("%s. Exit status %d.", text, r.ExitCode)
	}
	return text
}

// Runner executes one instruction and streams its output lines.
type Runner interface {
	Execute(ctx context.Context, instruction string, onLine func(string)) (*Result, error)
}

// ShellRunner runs instructions through the system shell. At most one
// command runs at a time; concurrent calls fail fast with ErrBusy.
type ShellRunner struct {
	shell string

	inFlight atomic.Bool
	executed atomic.Int64
	failed   atomic.Int64
}

// NewShellRunner creates a runner over the given shell binary; empty
// means "sh".
func NewShellRunner(shell string) *ShellRunner {
	if shell == "" {
		shell = "sh"
	}
	return &ShellRunner{shell: shell}
}

// Execute implements Runner. Output lines (stdout and stderr interleaved)
// are delivered to onLine as they arrive and retained on the result up to
// a cap. The context cancels the command.
func (r *ShellRunner) Execute(ctx context.Context, instruction string, onLine func(string)) (*Result, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.inFlight.Store(false)

	start := time.Now()
	log.Info().Str("instruction", instruction).Msg("executing command")

	cmd := exec.CommandContext(ctx, r.shell, "-c", instruction)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, fmt.Errorf("launch %q: %w", instruction, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	res := &Result{}
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if len(res.Lines) < maxStoredLines {
			res.Lines = append(res.Lines, line)
		}
		if onLine != nil {
			onLine(line)
		}
	}

	err := <-waitErr
	res.Duration = time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case ctx.Err() != nil:
			r.failed.Add(1)
			return nil, ctx.Err()
		default:
			r.failed.Add(1)
			return nil, fmt.Errorf("run %q: %w", instruction, err)
		}
	}

	r.executed.Add(1)
	if !res.Succeeded() {
		r.failed.Add(1)
	}

	log.Info().
		Int("exit_code", res.ExitCode).
		Int("output_lines", len(res.Lines)).
		Dur("duration", res.Duration).
		Msg("command complete")

	return res, nil
}

// Executed returns how many commands have run to completion.
func (r *ShellRunner) Executed() int64 { return r.executed.Load() }

// Failed returns how many commands failed to launch or exited non-zero.
func (r *ShellRunner) Failed() int64 { return r.failed.Load() }
