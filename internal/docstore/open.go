package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the store for backend. For sqlite the parent directory of
// path is created when missing; path is ignored for memory.
func Open(backend, path string, busyTimeout time.Duration) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, "":
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("docstore: create %s: %w", dir, err)
			}
		}
		return OpenSQLite(path, busyTimeout)
	default:
		return nil, fmt.Errorf("docstore: unknown backend %q", backend)
	}
}
