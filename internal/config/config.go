package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"outlay/internal/core"
)

type Config struct {
	// Snapshot storage
	LocalSnapshotPath  string
	RemoteSnapshotPath string
	SyncEnabled        bool

	// Projection
	ProjectionDBPath string

	// AMQP (optional change notifications)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Generation
	GenerateInterval time.Duration

	// Display settings
	Currency        string
	FirstWeekday    int
	TrackingEnabled bool
}

func Load() *Config {
	return &Config{
		LocalSnapshotPath:  getEnv("LOCAL_SNAPSHOT_PATH", "./data/outlay.json"),
		RemoteSnapshotPath: getEnv("REMOTE_SNAPSHOT_PATH", ""),
		SyncEnabled:        getEnvBool("SYNC_ENABLED", false),

		ProjectionDBPath: getEnv("PROJECTION_DB_PATH", "./data/outlay-widget.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "outlay"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "store_changes"),

		GenerateInterval: getEnvDuration("GENERATE_INTERVAL", time.Hour),

		Currency:        getEnv("CURRENCY", "EUR"),
		FirstWeekday:    getEnvInt("FIRST_WEEKDAY", 2),
		TrackingEnabled: getEnvBool("TRACKING_ENABLED", true),
	}
}

// Settings extracts the runtime settings handed to the core components.
func (c *Config) Settings() core.Settings {
	return core.Settings{
		SyncEnabled:     c.SyncEnabled,
		Currency:        c.Currency,
		FirstWeekday:    c.FirstWeekday,
		TrackingEnabled: c.TrackingEnabled,
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if c.LocalSnapshotPath == "" {
		errs = append(errs, "local snapshot path cannot be empty")
	} else if err := ensureDir(c.LocalSnapshotPath); err != nil {
		errs = append(errs, fmt.Sprintf("cannot create local snapshot directory: %v", err))
	}

	if c.SyncEnabled && c.RemoteSnapshotPath == "" {
		errs = append(errs, "remote snapshot path is required when sync is enabled")
	}
	if c.RemoteSnapshotPath != "" {
		if c.RemoteSnapshotPath == c.LocalSnapshotPath {
			errs = append(errs, "remote snapshot path must differ from the local path")
		} else if err := ensureDir(c.RemoteSnapshotPath); err != nil {
			errs = append(errs, fmt.Sprintf("cannot create remote snapshot directory: %v", err))
		}
	}

	if c.ProjectionDBPath != "" {
		if err := ensureDir(c.ProjectionDBPath); err != nil {
			errs = append(errs, fmt.Sprintf("cannot create projection directory: %v", err))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GenerateInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid generate interval %v: must be at least 1 minute", c.GenerateInterval))
	} else if c.GenerateInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid generate interval %v: must be at most 24 hours", c.GenerateInterval))
	}

	if c.FirstWeekday < 1 || c.FirstWeekday > 7 {
		errs = append(errs, fmt.Sprintf("invalid first weekday %d: must be between 1 and 7", c.FirstWeekday))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
