// Package git wraps the git CLI for the operations drover performs
// around plan runs: branch bookkeeping, committing step results, and
// reporting what a run changed.
package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Git runs git commands in a fixed working directory.
type Git struct {
	dir string
}

// NewGit returns a Git bound to dir.
func NewGit(dir string) *Git {
	return &Git{dir: dir}
}

// GitError carries the raw stderr of a failed git invocation so
// callers can surface git's own explanation.
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *GitError) Unwrap() error { return e.Err }

func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &GitError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether the directory is inside a git work tree.
func (g *Git) IsRepo() bool {
	out, err := g.run("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// HeadSHA returns the full commit hash of HEAD.
func (g *Git) HeadSHA() (string, error) {
	return g.run("rev-parse", "HEAD")
}

// IsClean reports whether the work tree has no staged, unstaged, or
// untracked changes.
func (g *Git) IsClean() (bool, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// CreateBranch creates a branch at HEAD without switching to it.
func (g *Git) CreateBranch(name string) error {
	_, err := g.run("branch", name)
	return err
}

// Checkout switches the work tree to ref.
func (g *Git) Checkout(ref string) error {
	_, err := g.run("checkout", ref)
	return err
}

// Add stages the given paths. With no arguments it stages everything.
func (g *Git) Add(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	_, err := g.run(append([]string{"add", "--"}, paths...)...)
	return err
}

// Commit records the staged changes with the given message.
func (g *Git) Commit(message string) error {
	_, err := g.run("commit", "-m", message)
	return err
}

// DiffStat summarizes uncommitted changes against HEAD in diffstat
// form. An empty string means the tracked tree is unchanged.
func (g *Git) DiffStat() (string, error) {
	return g.run("diff", "--stat", "HEAD")
}
