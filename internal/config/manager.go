package config

import (
	"fmt"
	"sync"
)

// ConfigManager provides thread-safe access to live configuration.
type ConfigManager interface {
	Get() *Config
	Set(cfg *Config)
	Reload(path string) error
}

// RWMutexManager provides thread-safe read-heavy config access using RWMutex.
type RWMutexManager struct {
	mu       sync.RWMutex
	cfg      *Config
	onReload []func(old, updated *Config)
}

// NewManager constructs a manager with an initial config.
func NewManager(initial *Config) *RWMutexManager {
	return &RWMutexManager{cfg: initial}
}

// Get returns the current config pointer under a shared lock.
func (m *RWMutexManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Set updates the current config pointer under an exclusive lock.
func (m *RWMutexManager) Set(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// OnReload registers fn to run after every successful Reload.
func (m *RWMutexManager) OnReload(fn func(old, updated *Config)) {
	m.mu.Lock()
	m.onReload = append(m.onReload, fn)
	m.mu.Unlock()
}

// Reload loads config from path, rejects changes that need a restart, and
// atomically swaps it into place.
func (m *RWMutexManager) Reload(path string) error {
	if path == "" {
		return fmt.Errorf("config reload path is required")
	}

	loaded, err := Load(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	old := m.cfg
	if err := ValidateReload(old, loaded); err != nil {
		m.mu.Unlock()
		return err
	}
	m.cfg = loaded
	hooks := append([]func(old, updated *Config){}, m.onReload...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(old, loaded)
	}
	return nil
}

// ValidateReload reports settings that cannot change without a restart.
func ValidateReload(old, updated *Config) error {
	if old == nil || updated == nil {
		return nil
	}
	if ExpandHome(old.General.StateDB) != ExpandHome(updated.General.StateDB) {
		return fmt.Errorf("general.state_db changed from %q to %q; restart required",
			old.General.StateDB, updated.General.StateDB)
	}
	if ExpandHome(old.General.LockFile) != ExpandHome(updated.General.LockFile) {
		return fmt.Errorf("general.lock_file changed from %q to %q; restart required",
			old.General.LockFile, updated.General.LockFile)
	}
	if old.Store.Backend != updated.Store.Backend {
		return fmt.Errorf("store.backend changed from %q to %q; restart required",
			old.Store.Backend, updated.Store.Backend)
	}
	if old.API.Bind != updated.API.Bind {
		return fmt.Errorf("api.bind changed from %q to %q; restart required", old.API.Bind, updated.API.Bind)
	}
	if old.Temporal != updated.Temporal {
		return fmt.Errorf("temporal settings changed; restart required")
	}
	return nil
}

var _ ConfigManager = (*RWMutexManager)(nil)
