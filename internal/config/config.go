// Package config manages netlayersctl configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete netlayersctl configuration.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Reassembly ReassemblyConfig `koanf:"reassembly"`
	Follower   FollowerConfig   `koanf:"follower"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus/status HTTP endpoint configuration,
// served by the `serve` subcommand via internal/httpapi.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// ReassemblyConfig controls the ip4defrag.Reassembler resource limits and
// eviction policy used by the `serve` subcommand.
type ReassemblyConfig struct {
	// MaxFragmentsPerStream caps buffered fragments per datagram before the
	// entry is dropped. Zero means unlimited.
	MaxFragmentsPerStream int `koanf:"max_fragments_per_stream"`

	// StreamTimeout is how long after its first fragment arrived an
	// incomplete datagram is kept before the sweep evicts it.
	StreamTimeout time.Duration `koanf:"stream_timeout"`

	// SweepInterval is the minimum spacing between age-based eviction
	// sweeps, piggy-backed onto Process calls.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// FollowerConfig controls the tcpassembly.Follower resource limits and
// eviction policy used by the `serve` subcommand.
type FollowerConfig struct {
	// FollowPartialStreams attaches to TCP conversations observed mid-flow,
	// without having seen the initial SYN.
	FollowPartialStreams bool `koanf:"follow_partial_streams"`

	// MinPartialStreamPayload is the minimum payload length a non-SYN
	// segment must carry to trigger partial-stream attachment.
	MinPartialStreamPayload int `koanf:"min_partial_stream_payload"`

	// MaxBufferedChunks caps out-of-order chunks buffered per direction.
	MaxBufferedChunks int `koanf:"max_buffered_chunks"`

	// MaxBufferedBytes caps buffered out-of-order bytes per direction.
	MaxBufferedBytes int `koanf:"max_buffered_bytes"`

	// MaxSackedIntervals caps the disjoint SACK interval set size.
	MaxSackedIntervals int `koanf:"max_sacked_intervals"`

	// KeepAlive is how long an idle stream may sit before the follower's
	// sweep evicts it.
	KeepAlive time.Duration `koanf:"keep_alive"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Reassembly: ReassemblyConfig{
			MaxFragmentsPerStream: 64,
			StreamTimeout:         30 * time.Second,
			SweepInterval:         5 * time.Second,
		},
		Follower: FollowerConfig{
			FollowPartialStreams:    false,
			MinPartialStreamPayload: 1,
			MaxBufferedChunks:       1024,
			MaxBufferedBytes:        4 << 20,
			MaxSackedIntervals:      64,
			KeepAlive:               2 * time.Minute,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for netlayersctl configuration.
// Variables are named NETLAYERS_<section>_<key>, e.g., NETLAYERS_METRICS_ADDR.
const envPrefix = "NETLAYERS_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NETLAYERS_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	NETLAYERS_LOG_LEVEL                       -> log.level
//	NETLAYERS_LOG_FORMAT                      -> log.format
//	NETLAYERS_METRICS_ADDR                    -> metrics.addr
//	NETLAYERS_METRICS_PATH                    -> metrics.path
//	NETLAYERS_REASSEMBLY_MAX_FRAGMENTS_PER_STREAM -> reassembly.max_fragments_per_stream
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NETLAYERS_METRICS_ADDR -> metrics.addr.
// Strips the NETLAYERS_ prefix, lowercases, and replaces the first _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return s
	}
	return parts[0] + "." + parts[1]
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"log.level":                            defaults.Log.Level,
		"log.format":                           defaults.Log.Format,
		"metrics.addr":                         defaults.Metrics.Addr,
		"metrics.path":                         defaults.Metrics.Path,
		"reassembly.max_fragments_per_stream":  defaults.Reassembly.MaxFragmentsPerStream,
		"reassembly.stream_timeout":            defaults.Reassembly.StreamTimeout.String(),
		"reassembly.sweep_interval":            defaults.Reassembly.SweepInterval.String(),
		"follower.follow_partial_streams":      defaults.Follower.FollowPartialStreams,
		"follower.min_partial_stream_payload":  defaults.Follower.MinPartialStreamPayload,
		"follower.max_buffered_chunks":         defaults.Follower.MaxBufferedChunks,
		"follower.max_buffered_bytes":          defaults.Follower.MaxBufferedBytes,
		"follower.max_sacked_intervals":        defaults.Follower.MaxSackedIntervals,
		"follower.keep_alive":                  defaults.Follower.KeepAlive.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidStreamTimeout indicates a non-positive reassembly stream timeout.
	ErrInvalidStreamTimeout = errors.New("reassembly.stream_timeout must be > 0")

	// ErrInvalidMinPartialPayload indicates a negative partial-stream threshold.
	ErrInvalidMinPartialPayload = errors.New("follower.min_partial_stream_payload must be >= 0")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if cfg.Reassembly.StreamTimeout <= 0 {
		return ErrInvalidStreamTimeout
	}

	if cfg.Follower.MinPartialStreamPayload < 0 {
		return ErrInvalidMinPartialPayload
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
