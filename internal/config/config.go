// Package config manages the gofix daemon configuration using koanf/v2.
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

// Config holds the complete gofix configuration.
type Config struct {
	Admin    AdminConfig      `koanf:"admin"`
	Acceptor AcceptorConfig   `koanf:"acceptor"`
	Metrics  MetricsConfig    `koanf:"metrics"`
	Log      LogConfig        `koanf:"log"`
	Defaults SessionDefaults  `koanf:"defaults"`
	Sessions []SessionEntry   `koanf:"sessions"`
}

// AdminConfig holds the JSON admin API server configuration.
type AdminConfig struct {
	// Addr is the admin HTTP listen address (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// AcceptorConfig holds the single TCP listen address every acceptor-typed
// session in Sessions is dispatched from (spec.md §4.6: a single listener
// demuxes inbound connections by reversed CompIDs).
type AcceptorConfig struct {
	// Addr is the FIX acceptor listen address (e.g., ":5001"). Left empty
	// if this process has no acceptor-typed sessions configured.
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// SessionDefaults holds the session parameters every entry in Sessions
// inherits unless it overrides them (spec.md §6 key table).
type SessionDefaults struct {
	HeartBtInt        time.Duration `koanf:"heartbeat_interval"`
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`
	LogonTimeout      time.Duration `koanf:"logon_timeout"`
	LogoutTimeout     time.Duration `koanf:"logout_timeout"`
	CheckLatency      bool          `koanf:"check_latency"`
	MaxLatency        time.Duration `koanf:"max_latency"`
	PersistMessages   bool          `koanf:"persist_messages"`
	CheckCompID       bool          `koanf:"check_comp_id"`
	ResetOnLogon      bool          `koanf:"reset_on_logon"`
	ResetOnLogout     bool          `koanf:"reset_on_logout"`
	ResetOnDisconnect bool          `koanf:"reset_on_disconnect"`
}

// SessionEntry describes one declarative FIX session from the
// configuration file. Each entry is registered on daemon startup and on
// SIGHUP reload.
type SessionEntry struct {
	BeginString  string `koanf:"begin_string"`
	SenderCompID string `koanf:"sender_comp_id"`
	SenderSubID  string `koanf:"sender_sub_id"`
	TargetCompID string `koanf:"target_comp_id"`
	TargetSubID  string `koanf:"target_sub_id"`

	// ConnectionType is "initiator" or "acceptor".
	ConnectionType string `koanf:"connection_type"`

	// TargetAddr is the host:port an initiator dials. Ignored for
	// acceptor entries, which are dispatched from AcceptorConfig.Addr.
	TargetAddr string `koanf:"target_addr"`

	// Overrides, zero value meaning "inherit from Defaults".
	HeartBtInt   time.Duration `koanf:"heartbeat_interval"`
	ResetOnLogon *bool         `koanf:"reset_on_logon"`
}

// SessionKey returns a unique identifier for the entry based on its full
// FIX identity. Used for diffing sessions on SIGHUP reload.
func (e SessionEntry) SessionKey() string {
	return strings.Join([]string{e.BeginString, e.SenderCompID, e.SenderSubID, e.TargetCompID, e.TargetSubID}, "|")
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Defaults: SessionDefaults{
			HeartBtInt:        30 * time.Second,
			ReconnectInterval: 30 * time.Second,
			LogonTimeout:      10 * time.Second,
			LogoutTimeout:     2 * time.Second,
			CheckLatency:      true,
			MaxLatency:        120 * time.Second,
			PersistMessages:   true,
			CheckCompID:       true,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for gofix configuration.
// Variables are named GOFIX_<section>_<key>, e.g., GOFIX_ADMIN_ADDR.
const envPrefix = "GOFIX_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GOFIX_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

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

// envKeyMapper transforms GOFIX_ADMIN_ADDR -> admin.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"admin.addr":                   defaults.Admin.Addr,
		"metrics.addr":                 defaults.Metrics.Addr,
		"metrics.path":                 defaults.Metrics.Path,
		"log.level":                    defaults.Log.Level,
		"log.format":                   defaults.Log.Format,
		"defaults.heartbeat_interval":  defaults.Defaults.HeartBtInt.String(),
		"defaults.reconnect_interval":  defaults.Defaults.ReconnectInterval.String(),
		"defaults.logon_timeout":       defaults.Defaults.LogonTimeout.String(),
		"defaults.logout_timeout":      defaults.Defaults.LogoutTimeout.String(),
		"defaults.check_latency":       defaults.Defaults.CheckLatency,
		"defaults.max_latency":         defaults.Defaults.MaxLatency.String(),
		"defaults.persist_messages":    defaults.Defaults.PersistMessages,
		"defaults.check_comp_id":       defaults.Defaults.CheckCompID,
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

var (
	ErrEmptyAdminAddr        = errors.New("admin.addr must not be empty")
	ErrInvalidConnectionType = errors.New("session connection_type must be initiator or acceptor")
	ErrMissingTargetAddr     = errors.New("initiator session requires target_addr")
	ErrMissingAcceptorAddr   = errors.New("acceptor session configured but acceptor.addr is empty")
	ErrMissingCompIDs        = errors.New("session requires sender_comp_id and target_comp_id")
	ErrDuplicateSessionKey   = errors.New("duplicate session key")
)

// ValidConnectionTypes lists the recognized connection_type strings.
var ValidConnectionTypes = map[string]bool{
	"initiator": true,
	"acceptor":  true,
}

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}
	return validateSessions(cfg)
}

func validateSessions(cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Sessions))

	for i, e := range cfg.Sessions {
		if !ValidConnectionTypes[e.ConnectionType] {
			return fmt.Errorf("sessions[%d] connection_type %q: %w", i, e.ConnectionType, ErrInvalidConnectionType)
		}
		if e.SenderCompID == "" || e.TargetCompID == "" {
			return fmt.Errorf("sessions[%d]: %w", i, ErrMissingCompIDs)
		}
		if e.ConnectionType == "initiator" && e.TargetAddr == "" {
			return fmt.Errorf("sessions[%d]: %w", i, ErrMissingTargetAddr)
		}
		if e.ConnectionType == "acceptor" && cfg.Acceptor.Addr == "" {
			return fmt.Errorf("sessions[%d]: %w", i, ErrMissingAcceptorAddr)
		}

		key := e.SessionKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("sessions[%d] key %q: %w", i, key, ErrDuplicateSessionKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
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
