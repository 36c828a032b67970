// Package lock provides a file-based advisory lock that serializes
// mutating work on a unit-of-work root across drover processes. The
// lock is a JSON file created with O_EXCL, so acquisition never races a
// check against a create. Locks abandoned by dead or unresponsive
// owners are recovered automatically.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/droverhq/drover/internal/constants"
	"github.com/droverhq/drover/internal/proc"
	"github.com/droverhq/drover/internal/util"
)

// Lock is the on-disk record of the current holder.
type Lock struct {
	PID           int       `json:"pid"`
	RunID         string    `json:"run_id"`
	Command       string    `json:"command"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// BusyError reports a lock held by another live process.
type BusyError struct {
	Owner *Lock
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("locked by pid %d (%s) since %s",
		e.Owner.PID, e.Owner.Command, e.Owner.StartedAt.Format(time.RFC3339))
}

// Guard manages the advisory lock for one unit-of-work root. A Guard is
// cheap to construct; all state lives in the lock file itself.
type Guard struct {
	path  string
	pid   int
	now   func() time.Time
	alive func(pid int) bool
}

// Option customizes a Guard. Used by tests to simulate foreign owners,
// dead processes, and stale heartbeats.
type Option func(*Guard)

// WithPID overrides the owner pid recorded in acquired locks.
func WithPID(pid int) Option {
	return func(g *Guard) { g.pid = pid }
}

// WithAliveProbe overrides the process liveness check.
func WithAliveProbe(fn func(pid int) bool) Option {
	return func(g *Guard) { g.alive = fn }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(g *Guard) { g.now = fn }
}

// NewGuard returns a Guard over root's lock file.
func NewGuard(root string, opts ...Option) *Guard {
	g := &Guard{
		path:  constants.LockPath(root),
		pid:   os.Getpid(),
		now:   time.Now,
		alive: proc.Alive,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Path returns the lock file location.
func (g *Guard) Path() string {
	return g.path
}

// Acquire takes the lock for runID, recording command as the holder's
// label. An existing lock is overwritten when it is corrupt, when this
// process already owns it (re-entrant update, e.g. switching runs), or
// when it is stale: owner dead, or heartbeat older than the stale
// timeout. A lock held by a live foreign owner fails with *BusyError.
func (g *Guard) Acquire(runID, command string) (*Lock, error) {
	// Bounded retries keep racing stale-clearers from spinning forever.
	for attempt := 0; attempt < constants.LockMaxAttempts; attempt++ {
		lk, err := g.create(runID, command)
		if err == nil {
			return lk, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		existing, readErr := g.read()
		if readErr != nil {
			// Corrupt or vanished mid-read: clear and retry.
			_ = os.Remove(g.path)
			continue
		}
		if existing.PID == g.pid {
			lk := g.newLock(runID, command)
			if err := util.AtomicWriteJSON(g.path, lk); err != nil {
				return nil, fmt.Errorf("updating held lock: %w", err)
			}
			return lk, nil
		}
		if g.stale(existing) {
			_ = os.Remove(g.path)
			continue
		}
		return nil, &BusyError{Owner: existing}
	}
	return nil, fmt.Errorf("acquiring lock: gave up after %d attempts", constants.LockMaxAttempts)
}

// Release removes the lock file if this process owns it. Releasing a
// foreign lock, or no lock at all, is a no-op.
func (g *Guard) Release() error {
	existing, err := g.read()
	if err != nil || existing.PID != g.pid {
		return nil
	}
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// Heartbeat refreshes last_heartbeat on a lock this process owns, so
// long-held locks stay distinguishable from abandoned ones. Foreign or
// missing locks are a no-op.
func (g *Guard) Heartbeat() error {
	existing, err := g.read()
	if err != nil || existing.PID != g.pid {
		return nil
	}
	existing.LastHeartbeat = g.now()
	if err := util.AtomicWriteJSON(g.path, existing); err != nil {
		return fmt.Errorf("refreshing heartbeat: %w", err)
	}
	return nil
}

// Current returns the lock on disk, or nil when the root is unlocked.
func (g *Guard) Current() (*Lock, error) {
	lk, err := g.read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return lk, nil
}

// create claims the lock file exclusively. The returned error satisfies
// os.IsExist when another lock file is already present.
func (g *Guard) create(runID, command string) (*Lock, error) {
	f, err := os.OpenFile(g.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	lk := g.newLock(runID, command)
	data, err := json.MarshalIndent(lk, "", "  ")
	if err == nil {
		_, err = f.Write(data)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(g.path)
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return lk, nil
}

func (g *Guard) read() (*Lock, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return nil, err
	}
	var lk Lock
	if err := json.Unmarshal(data, &lk); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	if lk.PID <= 0 {
		return nil, fmt.Errorf("parsing lock file: missing pid")
	}
	return &lk, nil
}

func (g *Guard) newLock(runID, command string) *Lock {
	now := g.now()
	return &Lock{
		PID:           g.pid,
		RunID:         runID,
		Command:       command,
		StartedAt:     now,
		LastHeartbeat: now,
	}
}

func (g *Guard) stale(lk *Lock) bool {
	if !g.alive(lk.PID) {
		return true
	}
	return g.now().Sub(lk.LastHeartbeat) > constants.LockStaleTimeout
}
