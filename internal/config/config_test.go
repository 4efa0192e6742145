package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/netlayers/netlayers/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

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

	if cfg.Reassembly.MaxFragmentsPerStream != 64 {
		t.Errorf("Reassembly.MaxFragmentsPerStream = %d, want 64", cfg.Reassembly.MaxFragmentsPerStream)
	}

	if cfg.Reassembly.StreamTimeout != 30*time.Second {
		t.Errorf("Reassembly.StreamTimeout = %v, want %v", cfg.Reassembly.StreamTimeout, 30*time.Second)
	}

	if cfg.Follower.MinPartialStreamPayload != 1 {
		t.Errorf("Follower.MinPartialStreamPayload = %d, want 1", cfg.Follower.MinPartialStreamPayload)
	}

	if cfg.Follower.KeepAlive != 2*time.Minute {
		t.Errorf("Follower.KeepAlive = %v, want %v", cfg.Follower.KeepAlive, 2*time.Minute)
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
log:
  level: "debug"
  format: "text"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
reassembly:
  max_fragments_per_stream: 16
  stream_timeout: "10s"
follower:
  follow_partial_streams: true
  min_partial_stream_payload: 8
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Reassembly.MaxFragmentsPerStream != 16 {
		t.Errorf("Reassembly.MaxFragmentsPerStream = %d, want 16", cfg.Reassembly.MaxFragmentsPerStream)
	}

	if cfg.Reassembly.StreamTimeout != 10*time.Second {
		t.Errorf("Reassembly.StreamTimeout = %v, want %v", cfg.Reassembly.StreamTimeout, 10*time.Second)
	}

	if !cfg.Follower.FollowPartialStreams {
		t.Error("Follower.FollowPartialStreams = false, want true")
	}

	if cfg.Follower.MinPartialStreamPayload != 8 {
		t.Errorf("Follower.MinPartialStreamPayload = %d, want 8", cfg.Follower.MinPartialStreamPayload)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override metrics.addr and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
metrics:
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
	if cfg.Metrics.Addr != ":55555" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":55555")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Reassembly.MaxFragmentsPerStream != 64 {
		t.Errorf("Reassembly.MaxFragmentsPerStream = %d, want default 64", cfg.Reassembly.MaxFragmentsPerStream)
	}

	if cfg.Follower.KeepAlive != 2*time.Minute {
		t.Errorf("Follower.KeepAlive = %v, want default %v", cfg.Follower.KeepAlive, 2*time.Minute)
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
			name: "empty metrics addr",
			modify: func(cfg *config.Config) {
				cfg.Metrics.Addr = ""
			},
			wantErr: config.ErrEmptyMetricsAddr,
		},
		{
			name: "negative stream timeout",
			modify: func(cfg *config.Config) {
				cfg.Reassembly.StreamTimeout = -1 * time.Second
			},
			wantErr: config.ErrInvalidStreamTimeout,
		},
		{
			name: "negative min partial stream payload",
			modify: func(cfg *config.Config) {
				cfg.Follower.MinPartialStreamPayload = -1
			},
			wantErr: config.ErrInvalidMinPartialPayload,
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

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NETLAYERS_LOG_LEVEL", "debug")
	t.Setenv("NETLAYERS_METRICS_ADDR", ":60000")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}

	if cfg.Metrics.Addr != ":60000" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":60000")
	}
}

func TestLoadEnvOverridesMetricsPath(t *testing.T) {
	yamlContent := `
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NETLAYERS_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
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
	path := filepath.Join(dir, "netlayers.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
