// Package config loads lpgdb's engine configuration from environment
// variables or a YAML file, following the reference engine's
// config.LoadFromEnv idiom (env vars with defaults for everything, no
// required fields) extended with apoc/config.go's YAML-file loading path.
//
// Configuration here only covers how Open is parameterized (SPEC_FULL.md's
// Ambient Stack section) — there is no server to configure, since the
// database is an embeddable library.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v3"

	"github.com/lpgdb/lpgdb/pkg/wal"
)

// Config holds the settings LoadFromEnv/LoadFromFile can populate; its
// fields map onto lpgdb.Options.
//
// This package does not import pkg/lpgdb (it depends only on pkg/wal);
// callers assign the fields of lpgdb.Options from this struct
// themselves, e.g.:
//
//	cfg := config.LoadFromEnv()
//	db, err := lpgdb.Open(lpgdb.Options{
//		Path:              cfg.DataDir,
//		WALSyncMode:       cfg.WALSyncMode(),
//		WALBatchInterval:  cfg.WALBatchInterval,
//		BufferBudgetBytes: cfg.BufferBudgetBytes,
//	})
type Config struct {
	// DataDir is the directory a persistent database is rooted at.
	// Empty means in-memory.
	DataDir string `yaml:"data_dir"`

	// WALSync selects the WAL durability mode by name: "always", "batch",
	// or "never".
	WALSync          string        `yaml:"wal_sync"`
	WALBatchInterval time.Duration `yaml:"wal_batch_interval"`

	// WALKeyHex is a hex-encoded chacha20poly1305 key (64 hex chars) for
	// WAL-at-rest encryption. Empty disables encryption.
	WALKeyHex string `yaml:"wal_key_hex"`

	// BufferBudgetBytes overrides the buffer manager's byte budget; zero
	// means the manager's own default (75% of detected system memory).
	BufferBudgetBytes uint64 `yaml:"buffer_budget_bytes"`

	// SnapshotKeepCount bounds how many snapshots a clean Close retains.
	SnapshotKeepCount int `yaml:"snapshot_keep_count"`

	// Logging settings, matching the reference engine's LoggingConfig
	// shape in spirit though lpgdb only has a single logger to tune.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with every field set to lpgdb's own
// internal defaults, so LoadFromEnv/LoadFromFile can be called without
// any environment variables or file present.
func DefaultConfig() *Config {
	return &Config{
		DataDir:           "",
		WALSync:           "batch",
		WALBatchInterval:  50 * time.Millisecond,
		BufferBudgetBytes: 0,
		SnapshotKeepCount: 3,
		LogLevel:          "INFO",
	}
}

// LoadFromEnv loads configuration from LPGDB_* environment variables,
// falling back to DefaultConfig's values for anything unset.
//
// Environment Variables:
//
//	LPGDB_DATA_DIR               - data directory (default: "", in-memory)
//	LPGDB_WAL_SYNC                - "always", "batch", or "never" (default: "batch")
//	LPGDB_WAL_BATCH_INTERVAL      - Go duration string (default: "50ms")
//	LPGDB_WAL_KEY_HEX             - hex chacha20poly1305 key (default: "", disabled)
//	LPGDB_BUFFER_BUDGET_BYTES     - integer byte count (default: 0, auto)
//	LPGDB_SNAPSHOT_KEEP_COUNT     - integer (default: 3)
//	LPGDB_LOG_LEVEL               - DEBUG, INFO, WARN, ERROR (default: "INFO")
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	cfg.DataDir = getEnv("LPGDB_DATA_DIR", cfg.DataDir)
	cfg.WALSync = getEnv("LPGDB_WAL_SYNC", cfg.WALSync)
	cfg.WALBatchInterval = getEnvDuration("LPGDB_WAL_BATCH_INTERVAL", cfg.WALBatchInterval)
	cfg.WALKeyHex = getEnv("LPGDB_WAL_KEY_HEX", cfg.WALKeyHex)
	cfg.BufferBudgetBytes = getEnvUint64("LPGDB_BUFFER_BUDGET_BYTES", cfg.BufferBudgetBytes)
	cfg.SnapshotKeepCount = getEnvInt("LPGDB_SNAPSHOT_KEEP_COUNT", cfg.SnapshotKeepCount)
	cfg.LogLevel = getEnv("LPGDB_LOG_LEVEL", cfg.LogLevel)

	return cfg
}

// LoadFromFile loads configuration from a YAML file, starting from
// DefaultConfig's values so an unspecified field keeps its default
// rather than zeroing out.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks for invalid combinations before a caller hands the
// config to Open.
func (c *Config) Validate() error {
	switch c.WALSync {
	case "always", "batch", "never":
	default:
		return fmt.Errorf("config: invalid wal_sync %q, want always|batch|never", c.WALSync)
	}
	if c.WALKeyHex != "" {
		if _, err := c.WALKey(); err != nil {
			return fmt.Errorf("config: invalid wal_key_hex: %w", err)
		}
	}
	if c.SnapshotKeepCount < 0 {
		return fmt.Errorf("config: negative snapshot_keep_count: %d", c.SnapshotKeepCount)
	}
	return nil
}

// WALSyncMode translates WALSync into a wal.SyncMode, defaulting to
// wal.SyncBatch for any value Validate would have rejected.
func (c *Config) WALSyncMode() wal.SyncMode {
	switch c.WALSync {
	case "always":
		return wal.SyncAlways
	case "never":
		return wal.SyncNever
	default:
		return wal.SyncBatch
	}
}

// WALKey decodes WALKeyHex into the 32-byte chacha20poly1305 key
// pkg/wal expects, or returns nil with no error if encryption is
// disabled.
func (c *Config) WALKey() ([]byte, error) {
	if c.WALKeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.WALKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("want %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

// String returns a representation safe for logging: WALKeyHex is
// redacted.
func (c *Config) String() string {
	redactedKey := ""
	if c.WALKeyHex != "" {
		redactedKey = "<redacted>"
	}
	return fmt.Sprintf(
		"Config{DataDir: %s, WALSync: %s, WALBatchInterval: %s, WALKey: %s, BufferBudgetBytes: %d, SnapshotKeepCount: %d, LogLevel: %s}",
		c.DataDir, c.WALSync, c.WALBatchInterval, redactedKey, c.BufferBudgetBytes, c.SnapshotKeepCount, c.LogLevel,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvUint64(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			return u
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
