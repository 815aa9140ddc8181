// Package config loads and validates the scrum service TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	General   General   `toml:"general"`
	Store     Store     `toml:"store"`
	API       API       `toml:"api"`
	Temporal  Temporal  `toml:"temporal"`
	Telemetry Telemetry `toml:"telemetry"`
}

type General struct {
	LogLevel     string `toml:"log_level"`
	LogFile      string `toml:"log_file"`
	LogMaxSizeMB int    `toml:"log_max_size_mb"`
	StateDB      string `toml:"state_db"`
	LockFile     string `toml:"lock_file"`
}

// Store selects the document store backend.
type Store struct {
	Backend     string   `toml:"backend"` // sqlite (default) or memory
	BusyTimeout Duration `toml:"busy_timeout"`
}

type API struct {
	Bind string `toml:"bind"`
}

// Temporal configures the scheduled reconciliation worker.
type Temporal struct {
	Enabled       bool     `toml:"enabled"`
	HostPort      string   `toml:"host_port"`
	Namespace     string   `toml:"namespace"`
	TaskQueue     string   `toml:"task_queue"`
	ReconcileCron string   `toml:"reconcile_cron"`
	Repair        bool     `toml:"repair"`
	DialTimeout   Duration `toml:"dial_timeout"`
}

type Telemetry struct {
	Enabled bool `toml:"enabled"`
	Stdout  bool `toml:"stdout"`
}

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no
// config file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogMaxSizeMB == 0 {
		cfg.General.LogMaxSizeMB = 50
	}
	if cfg.General.StateDB == "" {
		cfg.General.StateDB = "~/.local/share/scrum/scrum.db"
	}
	if cfg.General.LockFile == "" {
		cfg.General.LockFile = "~/.local/share/scrum/scrumd.lock"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendSQLite
	}
	if cfg.Store.BusyTimeout.Duration == 0 {
		cfg.Store.BusyTimeout.Duration = 5 * time.Second
	}
	if cfg.API.Bind == "" {
		cfg.API.Bind = "127.0.0.1:8900"
	}
	if cfg.Temporal.HostPort == "" {
		cfg.Temporal.HostPort = "127.0.0.1:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "scrum-reconcile-queue"
	}
	if cfg.Temporal.ReconcileCron == "" {
		cfg.Temporal.ReconcileCron = "0 * * * *"
	}
	if cfg.Temporal.DialTimeout.Duration == 0 {
		cfg.Temporal.DialTimeout.Duration = 2 * time.Minute
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("general.log_level %q must be one of debug, info, warn, error", cfg.General.LogLevel)
	}
	if cfg.General.LogMaxSizeMB < 0 {
		return fmt.Errorf("general.log_max_size_mb must be positive")
	}

	switch cfg.Store.Backend {
	case BackendSQLite:
		dir := ExpandHome(filepath.Dir(cfg.General.StateDB))
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("state_db directory %q does not exist: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("state_db parent path %q is not a directory", dir)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend %q must be %q or %q", cfg.Store.Backend, BackendSQLite, BackendMemory)
	}

	if cfg.Temporal.Enabled {
		if len(strings.Fields(cfg.Temporal.ReconcileCron)) != 5 {
			return fmt.Errorf("temporal.reconcile_cron %q must have five fields", cfg.Temporal.ReconcileCron)
		}
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
