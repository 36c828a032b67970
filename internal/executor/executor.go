// Package executor drives agent CLI commands asynchronously: spawn,
// stream, detect interactive prompts, forward externally supplied
// responses, and cancel out of band. It is the non-blocking counterpart
// of the runner, built for the long-lived serve process. One supervising
// goroutine per run owns the child's streams and terminal outcome; the
// injected registry is the only state shared across runs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/droverhq/drover/internal/constants"
	"github.com/droverhq/drover/internal/proc"
	"github.com/droverhq/drover/internal/runfail"
	"github.com/droverhq/drover/internal/util"
)

// eventBuffer absorbs output bursts between consumer reads.
const eventBuffer = 64

// readChunkSize is the bounded read size for stream pumps. Chunked
// reads, not line reads: prompts arrive without a trailing newline.
const readChunkSize = 4096

// Executor spawns and supervises interactive, cancellable runs.
type Executor struct {
	registry *Registry
	allowed  map[string]bool
	timeout  time.Duration
	grace    time.Duration
}

// Option customizes an Executor.
type Option func(*Executor)

// WithAllowedCommands replaces the permitted program names (matched
// against the command's basename).
func WithAllowedCommands(names ...string) Option {
	return func(e *Executor) {
		e.allowed = make(map[string]bool, len(names))
		for _, name := range names {
			e.allowed[name] = true
		}
	}
}

// WithDefaultTimeout sets the per-run timeout used when a RunSpec does
// not carry its own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithGraceWindow sets how long a terminated child gets to exit before
// it is killed.
func WithGraceWindow(d time.Duration) Option {
	return func(e *Executor) { e.grace = d }
}

// New returns an Executor that registers its runs in registry. By
// default only the supported agent tools may be spawned; the serve
// path widens this from the configured tool table.
func New(registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		allowed:  map[string]bool{"claude": true, "codex": true, "opencode": true},
		timeout:  constants.DefaultRunTimeout,
		grace:    constants.CancelGraceWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunSpec describes one asynchronous run.
type RunSpec struct {
	// ID keys the run in the registry; zero lets the registry assign
	// one from its counter.
	ID int64

	// Command is the executable to run, with Args as its arguments.
	Command string
	Args    []string

	// Dir is the working directory; empty means the caller's.
	Dir string

	// Env entries are appended to the parent environment.
	Env []string

	// Timeout bounds the run from spawn, covering output consumption
	// and input waits; zero means the executor default.
	Timeout time.Duration
}

// Start validates and spawns the command, registers the run before any
// I/O begins, and returns its handle. The supervising goroutine owns
// the process from here on; callers interact through the handle and
// through SendInput and Cancel.
func (e *Executor) Start(ctx context.Context, spec RunSpec) (*Run, error) {
	if err := e.checkCommand(spec.Command); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", spec.Command, runfail.ErrNotFound)
		}
		return nil, fmt.Errorf("starting %s: %w", spec.Command, err)
	}

	run := &Run{
		id:     spec.ID,
		cmd:    cmd,
		stdin:  stdin,
		events: make(chan Event, eventBuffer),
		input:  make(chan string, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	run.setState(StateSpawned)
	e.registry.register(run)

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	go e.supervise(ctx, run, stdout, stderr, timeout)
	return run, nil
}

// SendInput queues text as the response to a run's pending (or next)
// interactive prompt; the supervising loop writes it to the child's
// stdin with a trailing newline. Returns false for unknown or
// terminated runs, and when a previous response is still queued.
func (e *Executor) SendInput(id int64, text string) bool {
	run, ok := e.registry.Get(id)
	if !ok || run.State().Terminal() {
		return false
	}
	select {
	case run.input <- text:
		return true
	default:
		return false
	}
}

// Cancel terminates a registered run: graceful signal, bounded grace
// wait, then kill. It acts on the process directly, so it takes effect
// even while the run is blocked awaiting input. Returns false when
// there is nothing to cancel, either because the id is unknown or the
// run already terminated (natural completion racing the cancel is
// tolerated; any stale registry entry is removed). A second call after
// a successful first one reports false.
func (e *Executor) Cancel(id int64) bool {
	run, ok := e.registry.Get(id)
	if !ok {
		return false
	}
	if run.State().Terminal() {
		e.registry.deregister(id)
		return false
	}

	run.cancelled.Store(true)
	run.signalStop()
	_ = proc.Terminate(run.cmd.Process)
	select {
	case <-run.done:
	case <-time.After(e.grace):
		_ = proc.Kill(run.cmd.Process)
		<-run.done
	}
	e.registry.deregister(id)
	return true
}

// checkCommand rejects programs outside the controlled tool family.
// Defense in depth for specs arriving over the serve API, not a sandbox.
func (e *Executor) checkCommand(command string) error {
	if command == "" {
		return fmt.Errorf("empty command")
	}
	if e.allowed[filepath.Base(command)] {
		return nil
	}
	names := make([]string, 0, len(e.allowed))
	for name := range e.allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("command %q is not an allowed tool (allowed: %s)", command, strings.Join(names, ", "))
}

// supervise pumps the child's streams, detects prompts, forwards queued
// input, and drives the run to exactly one terminal state. It owns
// cmd.Wait; every exit path reaps the child and deregisters the run.
func (e *Executor) supervise(ctx context.Context, run *Run, stdout, stderr io.ReadCloser, timeout time.Duration) {
	defer e.registry.deregister(run.id)

	stdoutCh := pumpStream(stdout, run.done)
	stderrCh := pumpStream(stderr, run.done)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	run.setState(StateRunning)

	var (
		out    strings.Builder
		window []byte
		tail   = util.NewTailBuffer(constants.StderrTailBytes)
	)

	// reap starts the run's one cmd.Wait on first use; abort and the
	// end-of-stream path share its result channel.
	var waitDone chan error
	reap := func() <-chan error {
		if waitDone == nil {
			waitDone = make(chan error, 1)
			go func() { waitDone <- run.cmd.Wait() }()
		}
		return waitDone
	}

	// abort ends the run early: signal, bounded grace wait, kill if
	// still alive, reap, finish. Signalling an already-dead process is
	// harmless, so the timeout, context, and external-cancel paths all
	// share it.
	abort := func(state State, err error) {
		reaped := reap()
		_ = proc.Terminate(run.cmd.Process)
		select {
		case <-reaped:
		case <-time.After(e.grace):
			_ = proc.Kill(run.cmd.Process)
			<-reaped
		}
		run.finish(state, out.String(), err)
	}

	// deliver hands ev to the consumer, giving up when the deadline
	// passes or the run is cancelled, so a stalled consumer can never
	// wedge the loop past its timeout. Returns false once aborted.
	deliver := func(ev Event) bool {
		select {
		case run.events <- ev:
			return true
		case <-deadline.C:
			abort(StateTimedOut, runfail.ErrTimedOut)
			return false
		case <-ctx.Done():
			abort(StateCancelled, runfail.ErrCancelled)
			return false
		case <-run.stop:
			abort(StateCancelled, runfail.ErrCancelled)
			return false
		}
	}

	for stdoutCh != nil || stderrCh != nil {
		select {
		case chunk, ok := <-stdoutCh:
			if !ok {
				stdoutCh = nil
				continue
			}
			out.WriteString(chunk)
			if !deliver(Event{Channel: ChannelStdout, Text: chunk}) {
				return
			}
			window = appendWindow(window, chunk)
			prompt, found := detectPrompt(string(window))
			if !found {
				continue
			}
			window = window[:0]
			if !deliver(Event{Channel: ChannelPrompt, Text: prompt.Raw, Prompt: prompt}) {
				return
			}
			run.setState(StateAwaitingInput)
			select {
			case text := <-run.input:
				// A write failure means the child is gone; the
				// stream EOFs settle the outcome below.
				_, _ = io.WriteString(run.stdin, text+"\n")
				run.setState(StateRunning)
			case <-deadline.C:
				abort(StateTimedOut, runfail.ErrTimedOut)
				return
			case <-ctx.Done():
				abort(StateCancelled, runfail.ErrCancelled)
				return
			case <-run.stop:
				abort(StateCancelled, runfail.ErrCancelled)
				return
			}

		case chunk, ok := <-stderrCh:
			if !ok {
				stderrCh = nil
				continue
			}
			_, _ = tail.Write([]byte(chunk))
			if !deliver(Event{Channel: ChannelStderr, Text: chunk}) {
				return
			}

		case <-deadline.C:
			abort(StateTimedOut, runfail.ErrTimedOut)
			return
		case <-ctx.Done():
			abort(StateCancelled, runfail.ErrCancelled)
			return
		case <-run.stop:
			abort(StateCancelled, runfail.ErrCancelled)
			return
		}
	}

	// Both streams hit end-of-input: reap the child and map its exit.
	// The wait itself stays bounded; a child that closes its streams but
	// keeps running still honors the deadline, the context, and Cancel.
	var waitErr error
	select {
	case waitErr = <-reap():
	case <-deadline.C:
		abort(StateTimedOut, runfail.ErrTimedOut)
		return
	case <-ctx.Done():
		abort(StateCancelled, runfail.ErrCancelled)
		return
	case <-run.stop:
		abort(StateCancelled, runfail.ErrCancelled)
		return
	}
	switch {
	case run.cancelled.Load():
		run.finish(StateCancelled, out.String(), runfail.ErrCancelled)
	case waitErr == nil:
		run.finish(StateCompleted, out.String(), nil)
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			run.finish(StateFailed, out.String(), &runfail.ExitError{
				Code:       exitErr.ExitCode(),
				StderrTail: strings.TrimSpace(tail.String()),
			})
		} else {
			run.finish(StateFailed, out.String(), fmt.Errorf("waiting for command: %w", waitErr))
		}
	}
}

// pumpStream reads r in bounded chunks and forwards them until the
// stream ends or the run finishes. The returned channel closes on EOF.
func pumpStream(r io.Reader, done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		buf := make([]byte, readChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case ch <- string(buf[:n]):
				case <-done:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// appendWindow grows the rolling prompt-detection window, keeping only
// the most recent constants.PromptWindowBytes bytes.
func appendWindow(window []byte, chunk string) []byte {
	window = append(window, chunk...)
	if len(window) > constants.PromptWindowBytes {
		window = append(window[:0], window[len(window)-constants.PromptWindowBytes:]...)
	}
	return window
}
