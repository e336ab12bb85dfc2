package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dantte-lp/gofix/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Admin.Addr != ":8080" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":8080")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Defaults.HeartBtInt != 30*time.Second {
		t.Errorf("Defaults.HeartBtInt = %v, want %v", cfg.Defaults.HeartBtInt, 30*time.Second)
	}

	if cfg.Defaults.ReconnectInterval != 30*time.Second {
		t.Errorf("Defaults.ReconnectInterval = %v, want %v", cfg.Defaults.ReconnectInterval, 30*time.Second)
	}

	if !cfg.Defaults.CheckLatency {
		t.Error("Defaults.CheckLatency = false, want true")
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
admin:
  addr: ":60000"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
defaults:
  heartbeat_interval: "15s"
  reconnect_interval: "5s"
  check_latency: false
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Admin.Addr != ":60000" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":60000")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Defaults.HeartBtInt != 15*time.Second {
		t.Errorf("Defaults.HeartBtInt = %v, want %v", cfg.Defaults.HeartBtInt, 15*time.Second)
	}

	if cfg.Defaults.ReconnectInterval != 5*time.Second {
		t.Errorf("Defaults.ReconnectInterval = %v, want %v", cfg.Defaults.ReconnectInterval, 5*time.Second)
	}

	if cfg.Defaults.CheckLatency {
		t.Error("Defaults.CheckLatency = true, want false")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override admin.addr and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
admin:
  addr: ":55555"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.Admin.Addr != ":55555" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":55555")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Defaults.HeartBtInt != 30*time.Second {
		t.Errorf("Defaults.HeartBtInt = %v, want default %v", cfg.Defaults.HeartBtInt, 30*time.Second)
	}

	if !cfg.Defaults.CheckLatency {
		t.Error("Defaults.CheckLatency = false, want default true")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty admin addr",
			modify: func(cfg *config.Config) {
				cfg.Admin.Addr = ""
			},
			wantErr: config.ErrEmptyAdminAddr,
		},
		{
			name: "invalid connection type",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionEntry{
					{SenderCompID: "US", TargetCompID: "THEM", ConnectionType: "passive"},
				}
			},
			wantErr: config.ErrInvalidConnectionType,
		},
		{
			name: "missing comp ids",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionEntry{
					{ConnectionType: "initiator", TargetAddr: "127.0.0.1:5001"},
				}
			},
			wantErr: config.ErrMissingCompIDs,
		},
		{
			name: "initiator missing target addr",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionEntry{
					{SenderCompID: "US", TargetCompID: "THEM", ConnectionType: "initiator"},
				}
			},
			wantErr: config.ErrMissingTargetAddr,
		},
		{
			name: "acceptor missing listen addr",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionEntry{
					{SenderCompID: "US", TargetCompID: "THEM", ConnectionType: "acceptor"},
				}
			},
			wantErr: config.ErrMissingAcceptorAddr,
		},
		{
			name: "duplicate session key",
			modify: func(cfg *config.Config) {
				cfg.Acceptor.Addr = ":5001"
				entry := config.SessionEntry{BeginString: "FIX.4.4", SenderCompID: "US", TargetCompID: "THEM", ConnectionType: "acceptor"}
				cfg.Sessions = []config.SessionEntry{entry, entry}
			},
			wantErr: config.ErrDuplicateSessionKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// -------------------------------------------------------------------------
// Session Config Tests
// -------------------------------------------------------------------------

func TestLoadWithSessions(t *testing.T) {
	t.Parallel()

	yamlContent := `
admin:
  addr: ":8080"
acceptor:
  addr: ":5001"
sessions:
  - begin_string: "FIX.4.4"
    sender_comp_id: "US"
    target_comp_id: "THEM"
    connection_type: acceptor
  - begin_string: "FIX.4.4"
    sender_comp_id: "US2"
    target_comp_id: "THEM2"
    connection_type: initiator
    target_addr: "10.0.1.1:5001"
    heartbeat_interval: "10s"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if len(cfg.Sessions) != 2 {
		t.Fatalf("Sessions count = %d, want 2", len(cfg.Sessions))
	}

	s1 := cfg.Sessions[0]
	if s1.SenderCompID != "US" {
		t.Errorf("Sessions[0].SenderCompID = %q, want %q", s1.SenderCompID, "US")
	}
	if s1.ConnectionType != "acceptor" {
		t.Errorf("Sessions[0].ConnectionType = %q, want %q", s1.ConnectionType, "acceptor")
	}

	s2 := cfg.Sessions[1]
	if s2.TargetAddr != "10.0.1.1:5001" {
		t.Errorf("Sessions[1].TargetAddr = %q, want %q", s2.TargetAddr, "10.0.1.1:5001")
	}
	if s2.HeartBtInt != 10*time.Second {
		t.Errorf("Sessions[1].HeartBtInt = %v, want %v", s2.HeartBtInt, 10*time.Second)
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	if s1.SessionKey() == s2.SessionKey() {
		t.Error("Sessions[0] and Sessions[1] have the same key, expected different")
	}
}

func TestSessionKeyDistinguishesSubID(t *testing.T) {
	t.Parallel()

	a := config.SessionEntry{BeginString: "FIX.4.4", SenderCompID: "US", TargetCompID: "THEM"}
	b := config.SessionEntry{BeginString: "FIX.4.4", SenderCompID: "US", TargetCompID: "THEM", SenderSubID: "DESK1"}

	if a.SessionKey() == b.SessionKey() {
		t.Error("SessionKey() did not distinguish entries differing only by SenderSubID")
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
admin:
  addr: ":8080"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("GOFIX_ADMIN_ADDR", ":60000")
	t.Setenv("GOFIX_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Admin.Addr != ":60000" {
		t.Errorf("Admin.Addr = %q, want %q (from env)", cfg.Admin.Addr, ":60000")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
admin:
  addr: ":8080"
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("GOFIX_METRICS_ADDR", ":9200")
	t.Setenv("GOFIX_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "gofix.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
