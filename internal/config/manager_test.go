package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestManagerGetSet(t *testing.T) {
	initial := &Config{General: General{LogLevel: "info"}}
	mgr := NewManager(initial)

	if got := mgr.Get(); got != initial {
		t.Fatal("expected initial config")
	}
	next := &Config{General: General{LogLevel: "debug"}}
	mgr.Set(next)
	if got := mgr.Get(); got.General.LogLevel != "debug" {
		t.Fatalf("expected updated config, got %q", got.General.LogLevel)
	}
}

func TestManagerReload(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	mgr := NewManager(nil)

	var calls int
	mgr.OnReload(func(old, updated *Config) {
		calls++
		if old != nil {
			t.Errorf("expected nil previous config on first reload")
		}
		if updated.API.Bind != "127.0.0.1:9001" {
			t.Errorf("unexpected reloaded bind %q", updated.API.Bind)
		}
	})

	if err := mgr.Reload(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one reload hook call, got %d", calls)
	}
	if mgr.Get() == nil || mgr.Get().General.LogLevel != "info" {
		t.Fatal("expected populated config from file")
	}
}

func TestManagerReloadRequiresPath(t *testing.T) {
	mgr := NewManager(&Config{})
	if err := mgr.Reload(""); err == nil {
		t.Fatal("expected error for empty reload path")
	}
}

func TestManagerReloadRejectsRestartOnlyChanges(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	mgr := NewManager(nil)
	if err := mgr.Reload(path); err != nil {
		t.Fatalf("initial reload failed: %v", err)
	}
	before := mgr.Get()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	changed := strings.Replace(string(data), "127.0.0.1:9001", "127.0.0.1:9002", 1)
	if err := os.WriteFile(path, []byte(changed), 0644); err != nil {
		t.Fatal(err)
	}

	err = mgr.Reload(path)
	if err == nil || !strings.Contains(err.Error(), "restart required") {
		t.Fatalf("expected restart required error, got %v", err)
	}
	if mgr.Get() != before {
		t.Fatal("rejected reload must keep previous config")
	}
}

func TestManagerReloadAllowsLogLevelChange(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	mgr := NewManager(nil)
	if err := mgr.Reload(path); err != nil {
		t.Fatalf("initial reload failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	changed := strings.Replace(string(data), `log_level = "info"`, `log_level = "debug"`, 1)
	if err := os.WriteFile(path, []byte(changed), 0644); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Reload(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if mgr.Get().General.LogLevel != "debug" {
		t.Fatalf("log level = %q, want debug", mgr.Get().General.LogLevel)
	}
}

func TestManagerConcurrentReadWithWrites(t *testing.T) {
	mgr := NewManager(&Config{General: General{LogMaxSizeMB: 1}})

	var wg sync.WaitGroup
	for r := 0; r < 16; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if cfg := mgr.Get(); cfg == nil || cfg.General.LogMaxSizeMB < 1 {
					t.Errorf("observed invalid config snapshot")
					return
				}
			}
		}()
	}
	for i := 2; i < 200; i++ {
		mgr.Set(&Config{General: General{LogMaxSizeMB: i}})
	}
	wg.Wait()
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	mgr := NewManager(nil)
	if err := mgr.Reload(path); err != nil {
		t.Fatalf("initial reload failed: %v", err)
	}

	reloaded := make(chan string, 4)
	mgr.OnReload(func(_, updated *Config) { reloaded <- updated.General.LogLevel })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, mgr, logger) }()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	data, _ := os.ReadFile(path)
	changed := strings.Replace(string(data), `log_level = "info"`, `log_level = "warn"`, 1)
	if err := os.WriteFile(path, []byte(changed), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case level := <-reloaded:
		if level != "warn" {
			t.Fatalf("reloaded log level = %q, want warn", level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
}
