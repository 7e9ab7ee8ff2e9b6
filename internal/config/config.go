package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"rmx/internal/locks"
)

type RetryCfg struct {
	MaxAttempts    int `yaml:"max_attempts" json:"max_attempts"`         // Total tries per entry, first one included
	InitialDelayMS int `yaml:"initial_delay_ms" json:"initial_delay_ms"` // Pause before the second try
	MaxDelayMS     int `yaml:"max_delay_ms" json:"max_delay_ms"`         // Pause before the last try
}

type LoggingCfg struct {
	Level        string `yaml:"level" json:"level"`                 // debug, info, warn, error
	File         string `yaml:"file" json:"file"`                   // Optional JSON log file
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep rotated log files
}

type MetricsCfg struct {
	Addr string `yaml:"addr" json:"addr"` // e.g. ":9090"; empty disables the endpoint
}

type Config struct {
	Threads        int        `yaml:"threads" json:"threads"`
	KillProcesses  bool       `yaml:"kill_processes" json:"kill_processes"`
	IgnoreErrors   bool       `yaml:"ignore_errors" json:"ignore_errors"`
	Retry          RetryCfg   `yaml:"retry" json:"retry"`
	Logging        LoggingCfg `yaml:"logging" json:"logging"`
	Metrics        MetricsCfg `yaml:"metrics" json:"metrics"`
	ProtectedPaths []string   `yaml:"protected_paths" json:"protected_paths"` // Added to the built-in protected roots
}

var (
	errNegativeThreads = errors.New("threads cannot be negative")
	errInvalidRetry    = errors.New("retry.max_attempts must be at least 1")
	errNegativeDelay   = errors.New("retry delays cannot be negative")
	errDelayOrder      = errors.New("retry.max_delay_ms must not be below retry.initial_delay_ms")
	errInvalidLevel    = errors.New("logging.level must be one of debug, info, warn, error")
	errInvalidPath     = errors.New("path must be absolute")
)

// Default returns the built-in configuration used when no file is given
func Default() *Config {
	c := &Config{}
	// defaults cannot fail validation
	_ = c.validateAndDefault()
	return c
}

// Load reads a YAML config file from fsys
func Load(fsys afero.Fs, path string) (*Config, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// empty file: all defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.Threads < 0 {
		return errNegativeThreads
	}

	// Retry table defaults: 10 attempts, 10ms growing to 100ms
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = locks.DefaultAttempts
	}
	if c.Retry.MaxAttempts < 0 {
		return errInvalidRetry
	}
	if c.Retry.InitialDelayMS < 0 || c.Retry.MaxDelayMS < 0 {
		return errNegativeDelay
	}
	if c.Retry.InitialDelayMS == 0 {
		c.Retry.InitialDelayMS = int(locks.DefaultInitialDelay / time.Millisecond)
	}
	if c.Retry.MaxDelayMS == 0 {
		c.Retry.MaxDelayMS = int(locks.DefaultMaxDelay / time.Millisecond)
	}
	if c.Retry.MaxDelayMS < c.Retry.InitialDelayMS {
		return errDelayOrder
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", errInvalidLevel, c.Logging.Level)
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}
	if c.Logging.File != "" {
		cp, err := cleanAbsolute(c.Logging.File)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = cp
	}

	cleaned := make([]string, 0, len(c.ProtectedPaths))
	for _, p := range c.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("protected_paths: %w", err)
		}
		cleaned = append(cleaned, cp)
	}
	c.ProtectedPaths = cleaned

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

// Policy converts the retry section into the resolver's delay table
func (c *Config) Policy() locks.Policy {
	return c.Retry.Policy()
}

// Policy converts the retry settings into the resolver's delay table
func (r RetryCfg) Policy() locks.Policy {
	if r.MaxAttempts == 0 {
		return locks.DefaultPolicy()
	}
	return locks.LinearPolicy(
		r.MaxAttempts,
		time.Duration(r.InitialDelayMS)*time.Millisecond,
		time.Duration(r.MaxDelayMS)*time.Millisecond,
	)
}

// WorkerConfig is the per-run configuration handed to the core. It is built
// once from the file config and the command line and never changes.
type WorkerConfig struct {
	Verbose       bool
	IgnoreErrors  bool
	KillProcesses bool
	UnlockOnly    bool
	DryRun        bool
	// Threads is the pool size; zero means one worker per CPU
	Threads      int
	CollectSizes bool
	Retry        RetryCfg
}

// Worker derives the run configuration; command-line flags are applied on top
func (c *Config) Worker() WorkerConfig {
	return WorkerConfig{
		Threads:       c.Threads,
		KillProcesses: c.KillProcesses,
		IgnoreErrors:  c.IgnoreErrors,
		CollectSizes:  true,
		Retry:         c.Retry,
	}
}

// ThreadCount resolves Threads to a concrete worker count
func (w WorkerConfig) ThreadCount() int {
	if w.Threads > 0 {
		return w.Threads
	}
	return runtime.NumCPU()
}
