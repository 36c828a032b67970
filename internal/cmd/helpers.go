package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/store"
)

// SilentExitError signals an exit code without printing an error message.
// Scripting commands (e.g. "drover lock status") use it to report status
// via exit code alone.
type SilentExitError struct {
	Code int
}

func (e *SilentExitError) Error() string {
	return fmt.Sprintf("silent exit with code %d", e.Code)
}

// NewSilentExit returns an error that makes Execute exit with code
// without any output.
func NewSilentExit(code int) error {
	return &SilentExitError{Code: code}
}

// IsSilentExit reports whether err requests a silent exit, and with
// which code.
func IsSilentExit(err error) (int, bool) {
	var silent *SilentExitError
	if errors.As(err, &silent) {
		return silent.Code, true
	}
	return 0, false
}

// loadConfig reads the drover config, falling back to built-in defaults
// when no config file exists.
func loadConfig() (*config.Config, error) {
	path, err := config.Path()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// openStore opens the run database under the configured data dir.
func openStore(cfg *config.Config) (*store.Store, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	return store.Open(dataDir)
}

// resolveDir returns dir, or the current working directory when dir is
// empty.
func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("could not get current directory: %w", err)
	}
	return cwd, nil
}

// serviceURL turns a listen address into a base URL for the run
// service client. Full URLs pass through untouched.
func serviceURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}

// parseRunID parses a positional run id argument.
func parseRunID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q", arg)
	}
	return id, nil
}
