// Package config loads and validates the optional .emuharness YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up from the working directory
// upward.
const FileName = ".emuharness"

// Default values for harness configuration.
const (
	DefaultSubject   = "qemu-system-arm" // resolved on PATH
	DefaultOutput    = "test_report.json"
	DefaultMaxOutput = 1 << 20 // 1 MB
	DefaultHistory   = 5
)

// Config holds the parsed .emuharness configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int            `yaml:"version"`
	Subject      string         `yaml:"subject"`    // emulator executable path or name on PATH
	Output       string         `yaml:"output"`     // report path, relative to the config file
	Machine      string         `yaml:"machine"`    // QEMU machine name, e.g. raspberrypi-pico
	RawTimeout   string         `yaml:"timeout"`    // per-scenario budget, e.g. "2s"
	RawMaxOutput int            `yaml:"max_output"` // bytes per stream
	History      HistoryConfig  `yaml:"history"`
	Scenarios    ScenarioConfig `yaml:"scenarios"`
}

// HistoryConfig controls where emitted reports are kept for inspection.
type HistoryConfig struct {
	Dir  string `yaml:"dir"`  // default: a temp directory
	Keep int    `yaml:"keep"` // reports cached in memory (default: 5)
}

// ScenarioConfig narrows or tunes the catalog.
type ScenarioConfig struct {
	Only     []string          `yaml:"only"`     // run only these, in catalog order
	Timeouts map[string]string `yaml:"timeouts"` // scenario name -> duration
}

// SubjectPath returns the configured subject or the default.
func (c *Config) SubjectPath() string {
	if c.Subject != "" {
		return c.Subject
	}
	return DefaultSubject
}

// OutputPath returns the configured report path or the default.
func (c *Config) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	return DefaultOutput
}

// Timeout returns the configured per-scenario timeout, or zero to keep
// each scenario's own budget.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// HistorySize returns how many reports to keep in memory.
func (c *Config) HistorySize() int {
	if c.History.Keep > 0 {
		return c.History.Keep
	}
	return DefaultHistory
}

// ScenarioTimeouts parses the per-scenario overrides.
func (c *Config) ScenarioTimeouts() (map[string]time.Duration, error) {
	if len(c.Scenarios.Timeouts) == 0 {
		return nil, nil
	}
	out := make(map[string]time.Duration, len(c.Scenarios.Timeouts))
	for name, raw := range c.Scenarios.Timeouts {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("scenario %q timeout: %w", name, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("scenario %q timeout must be positive, got %s", name, d)
		}
		out[name] = d
	}
	return out, nil
}

// Validate reports malformed values that accessors would otherwise
// silently replace with defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.RawTimeout != "" {
		if d, err := time.ParseDuration(c.RawTimeout); err != nil {
			errs = append(errs, fmt.Errorf("timeout: %w", err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("timeout must be positive, got %s", d))
		}
	}
	if c.RawMaxOutput < 0 {
		errs = append(errs, fmt.Errorf("max_output must not be negative, got %d", c.RawMaxOutput))
	}
	if _, err := c.ScenarioTimeouts(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadResult holds the parsed config and where it was found.
type LoadResult struct {
	Config *Config
	Path   string // config file path; empty if none was found
	Root   string // directory relative paths resolve against
}

// Load looks for .emuharness in dir and its parents. If none exists, a
// default Config rooted at dir is returned.
func Load(dir string) (*LoadResult, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	path, err := findConfig(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: dir}, nil
	}
	return LoadFile(path)
}

// LoadFile reads an explicit configuration file.
func LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &LoadResult{Config: cfg, Path: abs, Root: filepath.Dir(abs)}, nil
}

// ResolvePath makes a relative path absolute against the config root.
func (r *LoadResult) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Root, p)
}

// ResolveSubject is like ResolvePath but leaves bare command names alone so
// that PATH lookup still applies.
func (r *LoadResult) ResolveSubject(p string) string {
	if !strings.ContainsRune(p, '/') && !strings.ContainsRune(p, os.PathSeparator) {
		return p
	}
	return r.ResolvePath(p)
}

// findConfig walks upward from dir looking for FileName.
func findConfig(dir string) (string, error) {
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
