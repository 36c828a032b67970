// Package config loads drover's TOML configuration file.
//
// Configuration lives at ~/.config/drover/config.toml (override with
// DROVER_CONFIG). A missing file is not an error: Load returns the
// built-in defaults, and a partial file overrides only the keys it
// names. The [tools] table defines which agent CLIs drover is willing
// to spawn.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/droverhq/drover/internal/constants"
)

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "DROVER_CONFIG"

// Tool describes how to invoke one agent CLI. Args are the fixed
// flags that put the tool into non-interactive JSON output mode; the
// prompt is appended as the final argument at spawn time.
type Tool struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// RunConfig holds per-run limits.
type RunConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	GraceSeconds   int `toml:"grace_seconds"`
}

// ServeConfig holds settings for the local run service.
type ServeConfig struct {
	Addr    string `toml:"addr"`
	DataDir string `toml:"data_dir"`
}

// PlanConfig holds plan execution settings.
type PlanConfig struct {
	// Template is a path to a custom prompt template file. Empty
	// selects the built-in template.
	Template string `toml:"template"`
}

// Config is the root of drover's configuration.
type Config struct {
	DefaultTool string          `toml:"default_tool"`
	Tools       map[string]Tool `toml:"tools"`
	Run         RunConfig       `toml:"run"`
	Serve       ServeConfig     `toml:"serve"`
	Plan        PlanConfig      `toml:"plan"`
}

// Default returns the built-in configuration: the three stock agent
// CLIs in non-interactive JSON mode and the standard run limits.
func Default() *Config {
	return &Config{
		DefaultTool: "claude",
		Tools: map[string]Tool{
			"claude": {
				Command: "claude",
				Args:    []string{"-p", "--output-format", "stream-json", "--verbose"},
			},
			"codex": {
				Command: "codex",
				Args:    []string{"exec", "--json"},
			},
			"opencode": {
				Command: "opencode",
				Args:    []string{"run", "--format", "json"},
			},
		},
		Run: RunConfig{
			TimeoutSeconds: int(constants.DefaultRunTimeout / time.Second),
			GraceSeconds:   int(constants.CancelGraceWindow / time.Second),
		},
		Serve: ServeConfig{
			Addr: constants.DefaultServeAddr,
		},
	}
}

// Path returns the config file location, honoring DROVER_CONFIG.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving config path: %w", err)
	}
	return filepath.Join(home, ".config", "drover", "config.toml"), nil
}

// Load reads the config file at path. A missing file yields the
// defaults. A present file is decoded over the defaults, so partial
// configs override only what they name and user-defined tools merge
// with the built-in table.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Tool resolves a tool by name. An empty name selects DefaultTool.
func (c *Config) Tool(name string) (Tool, error) {
	if name == "" {
		name = c.DefaultTool
	}
	tool, ok := c.Tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("tool %q is not configured (available: %s)",
			name, strings.Join(c.ToolNames(), ", "))
	}
	return tool, nil
}

// ToolNames returns the configured tool names in sorted order.
func (c *Config) ToolNames() []string {
	names := make([]string, 0, len(c.Tools))
	for name := range c.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllowedCommands returns the executable base names of the configured
// tools, sorted and deduplicated. This is the command family the
// executor is allowed to spawn.
func (c *Config) AllowedCommands() []string {
	seen := make(map[string]bool, len(c.Tools))
	for _, tool := range c.Tools {
		if tool.Command == "" {
			continue
		}
		seen[filepath.Base(tool.Command)] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Timeout returns the per-run timeout, falling back to the standard
// limit when unset.
func (c *Config) Timeout() time.Duration {
	if c.Run.TimeoutSeconds > 0 {
		return time.Duration(c.Run.TimeoutSeconds) * time.Second
	}
	return constants.DefaultRunTimeout
}

// Grace returns the cancel grace window, falling back to the standard
// window when unset.
func (c *Config) Grace() time.Duration {
	if c.Run.GraceSeconds > 0 {
		return time.Duration(c.Run.GraceSeconds) * time.Second
	}
	return constants.CancelGraceWindow
}

// Addr returns the service listen address.
func (c *Config) Addr() string {
	if c.Serve.Addr != "" {
		return c.Serve.Addr
	}
	return constants.DefaultServeAddr
}

// DataDir returns the directory where the run service keeps its
// database, transcripts, and lock file.
func (c *Config) DataDir() (string, error) {
	if c.Serve.DataDir != "" {
		return c.Serve.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving data dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "drover"), nil
}
