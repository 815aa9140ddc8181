package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scrum.toml")
	content = strings.ReplaceAll(content, "{{dir}}", filepath.ToSlash(dir))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
[general]
log_level = "info"
state_db = "{{dir}}/scrum.db"

[store]
backend = "sqlite"
busy_timeout = "3s"

[api]
bind = "127.0.0.1:9001"

[temporal]
enabled = true
host_port = "temporal:7233"
reconcile_cron = "*/15 * * * *"
repair = true
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.BusyTimeout.Duration != 3*time.Second {
		t.Errorf("busy_timeout = %v, want 3s", cfg.Store.BusyTimeout.Duration)
	}
	if cfg.API.Bind != "127.0.0.1:9001" {
		t.Errorf("api.bind = %q", cfg.API.Bind)
	}
	if !cfg.Temporal.Enabled || !cfg.Temporal.Repair {
		t.Errorf("temporal flags not loaded: %+v", cfg.Temporal)
	}
	if cfg.Temporal.TaskQueue != "scrum-reconcile-queue" {
		t.Errorf("task_queue default = %q", cfg.Temporal.TaskQueue)
	}
	if cfg.Temporal.Namespace != "default" {
		t.Errorf("namespace default = %q", cfg.Temporal.Namespace)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[general]
state_db = "{{dir}}/scrum.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.General.LogLevel != "info" {
		t.Errorf("log_level default = %q", cfg.General.LogLevel)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("backend default = %q", cfg.Store.Backend)
	}
	if !strings.HasSuffix(cfg.General.LockFile, "scrumd.lock") {
		t.Errorf("lock_file default = %q", cfg.General.LockFile)
	}
	if cfg.API.Bind != "127.0.0.1:8900" {
		t.Errorf("bind default = %q", cfg.API.Bind)
	}
	if cfg.Temporal.Enabled {
		t.Error("temporal should be disabled by default")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bad log level",
			content: "[general]\nlog_level = \"loud\"\nstate_db = \"{{dir}}/x.db\"\n",
			want:    "log_level",
		},
		{
			name:    "unknown backend",
			content: "[general]\nstate_db = \"{{dir}}/x.db\"\n[store]\nbackend = \"mongo\"\n",
			want:    "store.backend",
		},
		{
			name:    "missing state dir",
			content: "[general]\nstate_db = \"{{dir}}/missing/x.db\"\n",
			want:    "does not exist",
		},
		{
			name:    "bad cron",
			content: "[general]\nstate_db = \"{{dir}}/x.db\"\n[temporal]\nenabled = true\nreconcile_cron = \"hourly\"\n",
			want:    "reconcile_cron",
		},
		{
			name:    "bad duration",
			content: "[store]\nbusy_timeout = \"soon\"\n",
			want:    "invalid duration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTestConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestMemoryBackendSkipsStateDirCheck(t *testing.T) {
	path := writeTestConfig(t, "[general]\nstate_db = \"/nonexistent/dir/x.db\"\n[store]\nbackend = \"memory\"\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("memory backend should not require state_db directory: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(text) != "1m30s" {
		t.Fatalf("MarshalText = %q", text)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/scrum.db"); got != filepath.Join(home, "scrum.db") {
		t.Fatalf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("ExpandHome changed absolute path: %q", got)
	}
	if got := ExpandHome(""); got != "" {
		t.Fatalf("ExpandHome empty = %q", got)
	}
}
