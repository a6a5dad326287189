// ABOUTME: Application configuration from XDG config file plus environment overrides
// ABOUTME: Covers store path, remote endpoint, auth, sync cadence, and logging knobs
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Config holds everything the engine and CLI need to run.
type Config struct {
	DBPath        string   `json:"db_path"`
	SessionPath   string   `json:"session_path"`
	RemoteURL     string   `json:"remote_url"`
	RemoteAPIKey  string   `json:"remote_api_key"`
	AllowedEmails []string `json:"allowed_emails,omitempty"`

	MinSyncIntervalMin int `json:"min_sync_interval_min"`
	MorningSyncHour    int `json:"morning_sync_hour"`
	QueueTickSec       int `json:"queue_tick_sec"`
	PullTickMin        int `json:"pull_tick_min"`

	LogFile     string `json:"log_file,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`
	LogFormat   string `json:"log_format,omitempty"`
	MetricsBind string `json:"metrics_bind,omitempty"`
}

// ConfigDir returns the XDG-compliant directory for coldflow configuration.
func ConfigDir() string {
	return filepath.Join(xdg.DataHome, "coldflow")
}

// ConfigPath returns the XDG-compliant path of the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load reads the config file if present, then applies .env and environment
// variable overrides. A missing file yields defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	f, err := os.Open(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the config to the XDG data directory with restricted
// permissions, creating the directory if needed.
func Save(cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// MinSyncInterval converts the configured minutes into a duration.
func (c *Config) MinSyncInterval() time.Duration {
	return time.Duration(c.MinSyncIntervalMin) * time.Minute
}

// QueueTick is the cadence of queue drain attempts in daemon mode.
func (c *Config) QueueTick() time.Duration {
	return time.Duration(c.QueueTickSec) * time.Second
}

// PullTick is the cadence of remote pull attempts in daemon mode.
func (c *Config) PullTick() time.Duration {
	return time.Duration(c.PullTickMin) * time.Minute
}

func defaults() *Config {
	return &Config{
		DBPath:             filepath.Join(ConfigDir(), "coldflow.db"),
		SessionPath:        filepath.Join(ConfigDir(), "session.json"),
		MinSyncIntervalMin: 10,
		MorningSyncHour:    6,
		QueueTickSec:       5,
		PullTickMin:        2,
		LogLevel:           "INFO",
		LogFormat:          "TEXT",
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COLDFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("COLDFLOW_SESSION_PATH"); v != "" {
		cfg.SessionPath = v
	}
	if v := os.Getenv("COLDFLOW_REMOTE_URL"); v != "" {
		cfg.RemoteURL = v
	}
	if v := os.Getenv("COLDFLOW_REMOTE_API_KEY"); v != "" {
		cfg.RemoteAPIKey = v
	}
	if v := os.Getenv("COLDFLOW_ALLOWED_EMAILS"); v != "" {
		cfg.AllowedEmails = splitCSV(v)
	}
	if v := envInt("COLDFLOW_MIN_SYNC_INTERVAL_MIN"); v > 0 {
		cfg.MinSyncIntervalMin = v
	}
	if v, ok := envIntOK("COLDFLOW_MORNING_SYNC_HOUR"); ok && v >= 0 && v < 24 {
		cfg.MorningSyncHour = v
	}
	if v := envInt("COLDFLOW_QUEUE_TICK_SEC"); v > 0 {
		cfg.QueueTickSec = v
	}
	if v := envInt("COLDFLOW_PULL_TICK_MIN"); v > 0 {
		cfg.PullTickMin = v
	}
	if v := os.Getenv("COLDFLOW_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("COLDFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("COLDFLOW_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("COLDFLOW_METRICS_BIND"); v != "" {
		cfg.MetricsBind = v
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envInt(key string) int {
	v, _ := envIntOK(key)
	return v
}

func envIntOK(key string) (int, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return i, true
}
