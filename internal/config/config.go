// Package config loads the server configuration from an optional YAML file.
// Command-line flags given to the server override file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Normalize.
const (
	DefaultAddr           = ":8099"
	DefaultDataDir        = "/data"
	DefaultTimezone       = "UTC"
	DefaultLogLevel       = "info"
	DefaultMaxAttempts    = 3
	DefaultSweepSchedule  = "@every 1h"
	DefaultMaxImportBytes = 1 << 20
)

// LecturerConfig seeds one staff directory entry.
type LecturerConfig struct {
	ID       string `yaml:"id"`
	FullName string `yaml:"full_name"`
	Email    string `yaml:"email"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active,omitempty"`
}

// IsActive reports whether the lecturer is active, defaulting to true.
func (l LecturerConfig) IsActive() bool {
	return l.Active == nil || *l.Active
}

// Config is the top-level application configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// DataDir holds the SQLite database.
	DataDir string `yaml:"data_dir"`

	// StaticDir optionally serves a frontend build.
	StaticDir string `yaml:"static_dir"`

	// Timezone is the IANA zone of the canonical clock: calendar days,
	// "today" and whole-day release ranges are computed in it.
	Timezone string `yaml:"timezone"`

	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level"`

	// MaxAttempts bounds the optimistic resolve-and-commit loop.
	MaxAttempts int `yaml:"max_attempts"`

	// SweepSchedule is the cron spec of the stale draft sweeper.
	SweepSchedule string `yaml:"sweep_schedule"`

	// MaxImportBytes caps the size of an uploaded .ics file.
	MaxImportBytes int64 `yaml:"max_import_bytes"`

	// Lecturers seeds the staff directory at startup.
	Lecturers []LecturerConfig `yaml:"lecturers"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = DefaultSweepSchedule
	}
	if c.MaxImportBytes <= 0 {
		c.MaxImportBytes = DefaultMaxImportBytes
	}
	if c.Lecturers == nil {
		c.Lecturers = []LecturerConfig{}
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.SweepSchedule); err != nil {
		return fmt.Errorf("invalid sweep_schedule %q: %w", c.SweepSchedule, err)
	}

	seen := make(map[string]bool, len(c.Lecturers))
	for i, l := range c.Lecturers {
		if l.ID == "" || l.FullName == "" {
			return fmt.Errorf("lecturers[%d]: id and full_name are required", i)
		}
		if seen[l.ID] {
			return fmt.Errorf("lecturers[%d]: duplicate id %q", i, l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level resolves LogLevel.
func (c *Config) Level() (log.Level, error) {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Load reads configuration from the given YAML path. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WithField("path", path).Warn("Config file not found, using defaults")
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
