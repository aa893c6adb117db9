// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/roles"
	"github.com/rdx-project/patchbay/lib/watcher"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "PATCHBAY_CONFIG"

// Config is the complete patchbay configuration.
type Config struct {
	// Paths configures where state files live.
	Paths PathsConfig `yaml:"paths"`

	// Tools configures the JACK command-line utilities.
	Tools ToolsConfig `yaml:"tools"`

	// Timeouts bounds every external call.
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Watcher configures the reconciliation loop.
	Watcher WatcherConfig `yaml:"watcher"`

	// Roles adds client-name patterns to the built-in role tables.
	// Patterns listed here extend the defaults; they never replace
	// them.
	Roles roles.Matchers `yaml:"roles"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// PathsConfig configures state file locations.
type PathsConfig struct {
	// State is the directory holding every state file.
	// Default: ~/.local/state/patchbay
	State string `yaml:"state"`

	// Protected is the protected pairs file.
	// Default: ${PATCHBAY_STATE}/protected_pairs.json
	Protected string `yaml:"protected"`

	// Profiles is the connection profiles file.
	// Default: ${PATCHBAY_STATE}/profiles.json
	Profiles string `yaml:"profiles"`

	// WatcherSettings holds the persisted reconciliation toggle.
	// Default: ${PATCHBAY_STATE}/watcher.json
	WatcherSettings string `yaml:"watcher_settings"`
}

// ToolsConfig configures the JACK utilities. Each command is an argv
// list; wrappers such as ["pw-jack", "jack_lsp"] are allowed.
type ToolsConfig struct {
	Status      []string `yaml:"status"`
	Ports       []string `yaml:"ports"`
	Connections []string `yaml:"connections"`
	Connect     []string `yaml:"connect"`
	Disconnect  []string `yaml:"disconnect"`

	// Server selects a named JACK server through JACK_DEFAULT_SERVER.
	// Empty uses the default server.
	Server string `yaml:"server"`
}

// TimeoutsConfig bounds external calls.
type TimeoutsConfig struct {
	// List applies to status and listing queries. Default: 500ms
	List time.Duration `yaml:"list"`

	// Mutate applies to connect and disconnect. Default: 2s
	Mutate time.Duration `yaml:"mutate"`
}

// WatcherConfig configures reconciliation.
type WatcherConfig struct {
	// Enabled is the toggle used until one has been persisted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Interval is the tick period. Default: 2s
	Interval time.Duration `yaml:"interval"`

	// Rules replaces the default rule set when non-empty.
	Rules []watcher.Rule `yaml:"rules"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address "patchbay watch" serves /metrics on.
	// Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given. Call
// [Config.Validate] after changing it.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	tools := jack.NewCommandTools()

	return &Config{
		Paths: PathsConfig{
			State:           filepath.Join(homeDir, ".local", "state", "patchbay"),
			Protected:       "${PATCHBAY_STATE}/protected_pairs.json",
			Profiles:        "${PATCHBAY_STATE}/profiles.json",
			WatcherSettings: "${PATCHBAY_STATE}/watcher.json",
		},
		Tools: ToolsConfig{
			Status:      tools.StatusCommand,
			Ports:       tools.PortsCommand,
			Connections: tools.ConnectionsCommand,
			Connect:     tools.ConnectCommand,
			Disconnect:  tools.DisconnectCommand,
		},
		Timeouts: TimeoutsConfig{
			List:   jack.DefaultListTimeout,
			Mutate: jack.DefaultMutateTimeout,
		},
		Watcher: WatcherConfig{
			Enabled:  true,
			Interval: watcher.DefaultInterval,
		},
	}
}

// Load loads the file named by PATCHBAY_CONFIG, or returns the
// expanded defaults when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, merged over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges one YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["PATCHBAY_STATE"] = c.Paths.State

	c.Paths.Protected = expandVars(c.Paths.Protected, vars)
	c.Paths.Profiles = expandVars(c.Paths.Profiles, vars)
	c.Paths.WatcherSettings = expandVars(c.Paths.WatcherSettings, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.State == "" {
		errs = append(errs, errors.New("paths.state is required"))
	}
	for name, path := range map[string]string{
		"paths.protected":        c.Paths.Protected,
		"paths.profiles":         c.Paths.Profiles,
		"paths.watcher_settings": c.Paths.WatcherSettings,
	} {
		if path == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	for name, argv := range map[string][]string{
		"tools.status":      c.Tools.Status,
		"tools.ports":       c.Tools.Ports,
		"tools.connections": c.Tools.Connections,
		"tools.connect":     c.Tools.Connect,
		"tools.disconnect":  c.Tools.Disconnect,
	} {
		if len(argv) == 0 || argv[0] == "" {
			errs = append(errs, fmt.Errorf("%s needs a command", name))
		}
	}

	if c.Timeouts.List <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.list must be positive, got %v", c.Timeouts.List))
	}
	if c.Timeouts.Mutate <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.mutate must be positive, got %v", c.Timeouts.Mutate))
	}

	if c.Watcher.Interval <= 0 {
		errs = append(errs, fmt.Errorf("watcher.interval must be positive, got %v", c.Watcher.Interval))
	}
	for _, rule := range c.Watcher.Rules {
		if err := rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("watcher.rules: %w", err))
		}
	}

	if err := c.Roles.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("roles: %w", err))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the state directory and the parent directory of
// each state file.
func (c *Config) EnsurePaths() error {
	directories := []string{
		c.Paths.State,
		filepath.Dir(c.Paths.Protected),
		filepath.Dir(c.Paths.Profiles),
		filepath.Dir(c.Paths.WatcherSettings),
	}

	for _, directory := range directories {
		if directory == "" || directory == "." {
			continue
		}
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}

	return nil
}

// Matchers returns the built-in role tables extended with the
// configured patterns.
func (c *Config) Matchers() roles.Matchers {
	return roles.Default().Merge(c.Roles)
}

// Rules returns the configured watcher rules, or the defaults when
// none are configured.
func (c *Config) Rules() []watcher.Rule {
	if len(c.Watcher.Rules) == 0 {
		return watcher.DefaultRules()
	}
	return c.Watcher.Rules
}

// CommandTools builds the exec-backed JACK tools.
func (c *Config) CommandTools() *jack.CommandTools {
	tools := &jack.CommandTools{
		StatusCommand:      c.Tools.Status,
		PortsCommand:       c.Tools.Ports,
		ConnectionsCommand: c.Tools.Connections,
		ConnectCommand:     c.Tools.Connect,
		DisconnectCommand:  c.Tools.Disconnect,
		ListTimeout:        c.Timeouts.List,
		MutateTimeout:      c.Timeouts.Mutate,
	}
	if c.Tools.Server != "" {
		tools.Environment = []string{"JACK_DEFAULT_SERVER=" + c.Tools.Server}
	}
	return tools
}
