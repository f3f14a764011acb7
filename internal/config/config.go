// internal/config/config.go
//
// This package handles configuration and the .crewdeck directory structure.
// Every directory crewdeck runs from gets a .crewdeck/ folder with the
// session config and logs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// CrewdeckDir is the name of the directory we create per workspace.
	CrewdeckDir = ".crewdeck"
)

const defaultConfigYAML = `# crewdeck configuration
version: 1

api:
  # Base URL of the staffing backend.
  base_url: http://localhost:8080
  # Bearer token; leave empty for unauthenticated development backends.
  key: ""
  timeout_ms: 30000

search:
  debounce_ms: 300
  max_results: 5
  # Candidate pools above this size use the async skill-match job endpoint
  # when the backend supports it.
  large_pool_threshold: 50
  poll_interval_ms: 500
  poll_timeout_ms: 15000

list:
  page_size: 25

# Default department scope for searches. Empty means whole organization.
department: ""
`

// APIConfig points the client at the staffing backend.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	Key       string `yaml:"key,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty"`
}

// SearchConfig tunes the search reconciler.
type SearchConfig struct {
	DebounceMS         int `yaml:"debounce_ms,omitempty"`
	MaxResults         int `yaml:"max_results,omitempty"`
	LargePoolThreshold int `yaml:"large_pool_threshold,omitempty"`
	PollIntervalMS     int `yaml:"poll_interval_ms,omitempty"`
	PollTimeoutMS      int `yaml:"poll_timeout_ms,omitempty"`
}

// ListConfig tunes the project list.
type ListConfig struct {
	PageSize int `yaml:"page_size,omitempty"`
}

// Settings models .crewdeck/config.yaml.
type Settings struct {
	Version    int          `yaml:"version"`
	API        APIConfig    `yaml:"api"`
	Search     SearchConfig `yaml:"search"`
	List       ListConfig   `yaml:"list"`
	Department string       `yaml:"department,omitempty"`
}

// Config holds the runtime configuration for crewdeck.
type Config struct {
	// WorkDir is the directory the user ran `crewdeck` from.
	WorkDir string

	// CrewdeckWorkDir is WorkDir/.crewdeck.
	CrewdeckWorkDir string

	Settings Settings
}

// InitCrewdeckDir creates the .crewdeck directory structure in the given
// workspace. Called when the TUI starts up.
func InitCrewdeckDir(workDir string) error {
	crewdeckDir := filepath.Join(workDir, CrewdeckDir)
	dirs := []string{
		filepath.Join(crewdeckDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ensureConfigFile(filepath.Join(crewdeckDir, "config.yaml"))
}

// NewConfig creates a Config populated from .crewdeck/config.yaml, applying
// defaults for anything unset.
func NewConfig(workDir string) (*Config, error) {
	cfg := &Config{
		WorkDir:         workDir,
		CrewdeckWorkDir: filepath.Join(workDir, CrewdeckDir),
		Settings:        defaultSettings(),
	}
	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.CrewdeckWorkDir, "logs")
}

// ConfigPath returns the on-disk location for the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.CrewdeckWorkDir, "config.yaml")
}

// BaseURL returns the backend base URL.
func (c *Config) BaseURL() string { return c.Settings.API.BaseURL }

// APIKey returns the bearer token, possibly empty.
func (c *Config) APIKey() string { return c.Settings.API.Key }

// APITimeout returns the HTTP client timeout.
func (c *Config) APITimeout() time.Duration {
	return millis(c.Settings.API.TimeoutMS, 30*time.Second)
}

// DebounceWindow returns the search debounce quiescence window.
func (c *Config) DebounceWindow() time.Duration {
	return millis(c.Settings.Search.DebounceMS, 300*time.Millisecond)
}

// MaxSearchResults returns the result-set truncation size.
func (c *Config) MaxSearchResults() int {
	return positive(c.Settings.Search.MaxResults, 5)
}

// LargePoolThreshold returns the async-path candidate pool threshold.
func (c *Config) LargePoolThreshold() int {
	return positive(c.Settings.Search.LargePoolThreshold, 50)
}

// PollInterval returns the async job poll interval.
func (c *Config) PollInterval() time.Duration {
	return millis(c.Settings.Search.PollIntervalMS, 500*time.Millisecond)
}

// PollTimeout returns the async job poll timeout.
func (c *Config) PollTimeout() time.Duration {
	return millis(c.Settings.Search.PollTimeoutMS, 15*time.Second)
}

// PageSize returns the project list page size.
func (c *Config) PageSize() int {
	return positive(c.Settings.List.PageSize, 25)
}

// Department returns the default department scope.
func (c *Config) Department() string { return c.Settings.Department }

// SetDepartment updates the department scope and persists it.
func (c *Config) SetDepartment(department string) error {
	c.Settings.Department = strings.TrimSpace(department)
	return c.save()
}

func (c *Config) load() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed Settings
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Settings = parsed
	return nil
}

func (c *Config) save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Settings.applyDefaults()
	if err := c.Settings.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.CrewdeckWorkDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure crewdeck dir: %w", err)
	}
	data, err := yaml.Marshal(c.Settings)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write config: %w", err)
	}
	return nil
}

func defaultSettings() Settings {
	return Settings{
		Version: 1,
		API:     APIConfig{BaseURL: "http://localhost:8080"},
	}
}

func (s *Settings) applyDefaults() {
	if s.Version == 0 {
		s.Version = 1
	}
	if strings.TrimSpace(s.API.BaseURL) == "" {
		s.API.BaseURL = "http://localhost:8080"
	}
	s.API.BaseURL = strings.TrimRight(strings.TrimSpace(s.API.BaseURL), "/")
	s.Department = strings.TrimSpace(s.Department)
}

func (s Settings) validate() error {
	if s.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !strings.HasPrefix(s.API.BaseURL, "http://") && !strings.HasPrefix(s.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	if s.Search.DebounceMS < 0 || s.Search.PollIntervalMS < 0 || s.Search.PollTimeoutMS < 0 {
		return fmt.Errorf("search timings must not be negative")
	}
	if s.List.PageSize < 0 {
		return fmt.Errorf("list.page_size must not be negative")
	}
	return nil
}

func millis(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Millisecond
}

func positive(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0644)
}
