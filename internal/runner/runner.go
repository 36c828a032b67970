// Package runner executes an agent CLI command to completion, streaming
// extracted text as it arrives. It is the synchronous counterpart of the
// executor: one blocking call per run, bounded by a wall-clock timeout,
// with guaranteed child cleanup on every exit path.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/droverhq/drover/internal/constants"
	"github.com/droverhq/drover/internal/extract"
	"github.com/droverhq/drover/internal/proc"
	"github.com/droverhq/drover/internal/runfail"
	"github.com/droverhq/drover/internal/util"
)

// Spec describes one synchronous command run.
type Spec struct {
	// Command is the executable to run, with Args as its arguments.
	Command string
	Args    []string

	// Dir is the working directory; empty means the caller's.
	Dir string

	// Env entries are appended to the parent environment.
	Env []string

	// Timeout bounds the run's wall-clock time from spawn; zero means
	// constants.DefaultRunTimeout.
	Timeout time.Duration

	// Extractor turns raw stdout lines into readable text; nil means
	// plain passthrough.
	Extractor extract.Extractor

	// Console receives extracted fragments as they arrive, for live
	// progress. Nil discards them. Writes are best-effort.
	Console io.Writer
}

// Run executes the command to completion and returns the accumulated
// extracted text. Failures are typed: runfail.ErrNotFound for a missing
// executable, *runfail.ExitError for a non-zero exit (with the stderr
// tail), runfail.ErrTimedOut when the timeout expires, and
// runfail.ErrCancelled when ctx is cancelled. Text accumulated before a
// failure is returned alongside the error.
func Run(ctx context.Context, spec Spec) (string, error) {
	extractor := spec.Extractor
	if extractor == nil {
		extractor = extract.Plain()
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRunTimeout
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", spec.Command, runfail.ErrNotFound)
		}
		return "", fmt.Errorf("starting %s: %w", spec.Command, err)
	}

	tail := util.NewTailBuffer(constants.StderrTailBytes)
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		_, _ = io.Copy(tail, stderr)
	}()

	// The reader goroutine owns all stdout reads and the final Wait, so
	// the child is never reaped while its output is still being consumed.
	// readerStop unblocks it when the consumer abandons the stream.
	readerStop := make(chan struct{})
	var stopOnce sync.Once
	stopReading := func() { stopOnce.Do(func() { close(readerStop) }) }

	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), constants.MaxLineBytes)
	scan:
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readerStop:
				break scan
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
			// The child may be blocked writing to the unread pipe.
			_ = proc.Kill(cmd.Process)
		}
		close(lines)
		<-stderrDone
		done <- cmd.Wait()
	}()

	// Every exit path reaps the child, even if an extractor panics.
	reaped := false
	defer func() {
		if reaped {
			return
		}
		stopReading()
		_ = proc.Kill(cmd.Process)
		_ = stdout.Close()
		_ = stderr.Close()
		<-done
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out strings.Builder
	prevEndedNL := true
	for lines != nil {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			text, ok := extractor.Extract(line)
			if !ok || text == "" {
				continue
			}
			out.WriteString(text)
			if spec.Console != nil {
				if !prevEndedNL {
					_, _ = io.WriteString(spec.Console, "\n")
				}
				_, _ = io.WriteString(spec.Console, text)
			}
			prevEndedNL = strings.HasSuffix(text, "\n")

		case <-timer.C:
			stopReading()
			shutdown(cmd, done, stdout, stderr)
			reaped = true
			return out.String(), runfail.ErrTimedOut

		case <-ctx.Done():
			stopReading()
			shutdown(cmd, done, stdout, stderr)
			reaped = true
			return out.String(), runfail.ErrCancelled
		}
	}

	// Stream EOF does not end timeout enforcement: a child that closes
	// its streams but keeps running is reaped when the deadline fires,
	// and cancellation stays live while the reap is pending.
	var waitErr error
	select {
	case waitErr = <-done:
	case <-timer.C:
		shutdown(cmd, done, stdout, stderr)
		reaped = true
		return out.String(), runfail.ErrTimedOut
	case <-ctx.Done():
		shutdown(cmd, done, stdout, stderr)
		reaped = true
		return out.String(), runfail.ErrCancelled
	}
	reaped = true

	select {
	case err := <-scanErr:
		return out.String(), fmt.Errorf("scanning output: %w", err)
	default:
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return out.String(), &runfail.ExitError{
				Code:       exitErr.ExitCode(),
				StderrTail: strings.TrimSpace(tail.String()),
			}
		}
		return out.String(), fmt.Errorf("waiting for %s: %w", spec.Command, waitErr)
	}
	return out.String(), nil
}

// shutdown escalates from a graceful terminate through a bounded grace
// window to a hard kill, and blocks until the child has been reaped.
// After the kill it closes our pipe ends: a grandchild that inherited
// them can hold the write side open indefinitely, and the reader must
// unblock before the child can be reaped.
func shutdown(cmd *exec.Cmd, done <-chan error, pipes ...io.Closer) {
	_ = proc.Terminate(cmd.Process)
	select {
	case <-done:
		return
	case <-time.After(constants.CancelGraceWindow):
	}
	_ = proc.Kill(cmd.Process)
	for _, p := range pipes {
		_ = p.Close()
	}
	<-done
}
