// Package config loads and validates the packwatch configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Interp  InterpConfig  `yaml:"interp"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ProjectConfig describes the supervised project.
type ProjectConfig struct {
	// Dir is the project root directory.
	Dir string `yaml:"dir"`

	// Lockfile is the lockfile path relative to Dir.
	Lockfile string `yaml:"lockfile,omitempty"`

	// Library is the private library directory relative to Dir.
	Library string `yaml:"library,omitempty"`

	// IgnoreDirs are tool-managed directory names inside the library whose
	// changes are never meaningful.
	IgnoreDirs []string `yaml:"ignore_dirs,omitempty"`
}

// DaemonConfig controls the daemon loop and its HTTP surface.
// Durations are strings in time.ParseDuration format ("30s", "5m").
type DaemonConfig struct {
	ListenAddr    string `yaml:"listen_addr,omitempty"`
	StateDB       string `yaml:"state_db,omitempty"`
	SweepInterval string `yaml:"sweep_interval,omitempty"` // "0" disables the sweep
}

// InterpConfig configures the external dependency-tool bridge.
type InterpConfig struct {
	Binary       string `yaml:"binary,omitempty"`
	QueryTimeout string `yaml:"query_timeout,omitempty"`
}

// NotifyConfig configures external client-refresh forwarding. Forwarding is
// enabled by setting nats_url.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig toggles the Prometheus recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env/.env.local if present; existing env vars win.
	_ = godotenv.Load(".env", ".env.local")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with defaults applied for the given
// project directory, used when no config file is supplied.
func Default(projectDir string) *Config {
	cfg := &Config{Project: ProjectConfig{Dir: projectDir}}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Project.Lockfile == "" {
		c.Project.Lockfile = filepath.Join("packrat", "packrat.lock")
	}
	if c.Project.Library == "" {
		c.Project.Library = filepath.Join("packrat", "lib")
	}
	if len(c.Project.IgnoreDirs) == 0 {
		c.Project.IgnoreDirs = []string{"manipulate", "rstudio"}
	}
	if c.Daemon.ListenAddr == "" {
		c.Daemon.ListenAddr = "127.0.0.1:8974"
	}
	if c.Daemon.StateDB == "" && c.Project.Dir != "" {
		c.Daemon.StateDB = filepath.Join(c.Project.Dir, ".packwatch", "state.db")
	}
	if c.Daemon.SweepInterval == "" {
		c.Daemon.SweepInterval = "5m"
	}
	if c.Interp.Binary == "" {
		c.Interp.Binary = "Rscript"
	}
	if c.Interp.QueryTimeout == "" {
		c.Interp.QueryTimeout = "30s"
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "packwatch.packages-changed"
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Project.Dir == "" {
		return fmt.Errorf("project.dir is required")
	}
	if _, err := parseDuration(c.Daemon.SweepInterval); err != nil {
		return fmt.Errorf("daemon.sweep_interval: %w", err)
	}
	if _, err := parseDuration(c.Interp.QueryTimeout); err != nil {
		return fmt.Errorf("interp.query_timeout: %w", err)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}
	return d, nil
}

// SweepIntervalDuration returns the parsed sweep interval; zero disables
// the periodic sweep.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, _ := parseDuration(c.Daemon.SweepInterval)
	return d
}

// QueryTimeoutDuration returns the parsed interpreter query timeout.
func (c *Config) QueryTimeoutDuration() time.Duration {
	d, _ := parseDuration(c.Interp.QueryTimeout)
	return d
}

// LockfilePath returns the absolute lockfile path.
func (c *Config) LockfilePath() string {
	return filepath.Join(c.Project.Dir, c.Project.Lockfile)
}

// LibraryPath returns the absolute library directory path.
func (c *Config) LibraryPath() string {
	return filepath.Join(c.Project.Dir, c.Project.Library)
}
