package executor

import (
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

// State is a run's position in its lifecycle. Transitions:
// Spawned → Running → {AwaitingInput ⇄ Running} → terminal.
type State int32

const (
	StateSpawned State = iota
	StateRunning
	StateAwaitingInput
	StateCompleted
	StateFailed
	StateTimedOut
	StateCancelled
)

// Terminal reports whether the run has finished.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateRunning:
		return "running"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Channel identifies which stream an event came from.
type Channel string

const (
	ChannelStdout Channel = "stdout"
	ChannelStderr Channel = "stderr"
	ChannelPrompt Channel = "prompt"
)

// Event is one element of a run's ordered output stream.
type Event struct {
	Channel Channel
	Text    string

	// Prompt carries the parsed choice when Channel is ChannelPrompt.
	Prompt *Prompt
}

// Run is a live handle to one asynchronously executing command. The
// supervising goroutine owns all stream I/O and is the only writer of
// the terminal result; the handle's methods are safe from any
// goroutine.
type Run struct {
	id    int64
	cmd   *exec.Cmd
	stdin io.WriteCloser

	// events streams (channel, text) pairs in read order and closes
	// when the run terminates. Consumers must drain it; the supervising
	// loop blocks on delivery, bounded by the run's deadline.
	events chan Event

	// input is the single-slot response queue feeding the child's
	// stdin. A queued response is consumed at the next AwaitingInput.
	input chan string

	state atomic.Int32

	// cancelled marks an external cancel so the exit is reported as
	// Cancelled rather than Failed once the process dies.
	cancelled atomic.Bool

	// stop is closed by Cancel to break the supervising loop out of
	// any blocking point without waiting for the deadline.
	stop     chan struct{}
	stopOnce sync.Once

	// Terminal result, written by the supervising loop before done is
	// closed and never mutated after.
	out  string
	err  error
	done chan struct{}
}

// ID returns the registry id of the run.
func (r *Run) ID() int64 {
	return r.id
}

// PID returns the child process id.
func (r *Run) PID() int {
	return r.cmd.Process.Pid
}

// State returns the run's current lifecycle state.
func (r *Run) State() State {
	return State(r.state.Load())
}

// Events returns the run's ordered output stream. The channel is closed
// when the run terminates.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Done is closed once the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run terminates and returns the accumulated
// stdout text together with the terminal error, if any.
func (r *Run) Wait() (string, error) {
	<-r.done
	return r.out, r.err
}

func (r *Run) setState(s State) {
	r.state.Store(int32(s))
}

func (r *Run) signalStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// finish records the terminal result. Called exactly once, by the
// supervising loop.
func (r *Run) finish(state State, out string, err error) {
	r.out = out
	r.err = err
	r.setState(state)
	close(r.events)
	close(r.done)
}
