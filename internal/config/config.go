// Package config handles examsync's global configuration at
// ~/.config/examsync. Every getter resolves env > config.json > default,
// so scripted and kiosk deployments can override without touching files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AutoSyncConfig holds background delivery settings.
type AutoSyncConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`  // nil = default true
	OnStart  *bool  `json:"on_start,omitempty"` // nil = default true
	Interval string `json:"interval,omitempty"` // duration string, default "5m"
}

// ServerConfig holds remote sink settings.
type ServerConfig struct {
	URL            string         `json:"url"`
	RequestTimeout string         `json:"request_timeout,omitempty"` // duration string, default "15s"
	ProbeInterval  string         `json:"probe_interval,omitempty"`  // duration string, default "30s"
	Auto           AutoSyncConfig `json:"auto"`
}

// Config is the global examsync config stored at ~/.config/examsync/config.json.
type Config struct {
	Server ServerConfig `json:"server"`
}

// DeviceIdentity is persisted at ~/.config/examsync/device.json so the
// server can correlate deliveries from the same workstation across runs.
type DeviceIdentity struct {
	DeviceID string `json:"device_id"`
	APIKey   string `json:"api_key,omitempty"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/examsync, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "examsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the global config from ~/.config/examsync/config.json.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to ~/.config/examsync/config.json.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadDevice reads the device identity from ~/.config/examsync/device.json.
// Returns nil with no error when the file does not exist.
func LoadDevice() (*DeviceIdentity, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "device.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dev DeviceIdentity
	if err := json.Unmarshal(data, &dev); err != nil {
		return nil, err
	}
	return &dev, nil
}

// SaveDevice writes the device identity (0600, it may hold an API key).
func SaveDevice(dev *DeviceIdentity) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(dev, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "device.json"), data, 0600)
}

// writeAtomic writes via a temp file and rename so a crash mid-write
// never leaves a truncated config behind.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// GetServerURL returns the answer sink base URL.
// Priority: EXAMSYNC_SERVER_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("EXAMSYNC_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.Server.URL != "" {
		return cfg.Server.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key for the answer sink.
// Priority: EXAMSYNC_API_KEY env > device.json.
func GetAPIKey() string {
	if v := os.Getenv("EXAMSYNC_API_KEY"); v != "" {
		return v
	}
	dev, err := LoadDevice()
	if err == nil && dev != nil {
		return dev.APIKey
	}
	return ""
}

// GetDeviceID returns the persistent device ID, minting and saving one on
// first use.
func GetDeviceID() (string, error) {
	dev, err := LoadDevice()
	if err != nil {
		return "", err
	}
	if dev != nil && dev.DeviceID != "" {
		return dev.DeviceID, nil
	}
	if dev == nil {
		dev = &DeviceIdentity{}
	}
	dev.DeviceID = uuid.NewString()
	if err := SaveDevice(dev); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return dev.DeviceID, nil
}

// GetRequestTimeout returns the per-delivery HTTP timeout.
// Priority: EXAMSYNC_TIMEOUT env > config.json server.request_timeout > 15s.
func GetRequestTimeout() time.Duration {
	if v := os.Getenv("EXAMSYNC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Server.RequestTimeout != "" {
		if d, err := time.ParseDuration(cfg.Server.RequestTimeout); err == nil && d > 0 {
			return d
		}
	}
	return 15 * time.Second
}

// GetProbeInterval returns how often the watch daemon probes connectivity.
// Priority: EXAMSYNC_PROBE_INTERVAL env > config.json server.probe_interval > 30s.
func GetProbeInterval() time.Duration {
	if v := os.Getenv("EXAMSYNC_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Server.ProbeInterval != "" {
		if d, err := time.ParseDuration(cfg.Server.ProbeInterval); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := strings.ToLower(os.Getenv(envKey))
	if v == "" {
		return nil
	}
	if v == "1" || v == "true" {
		b := true
		return &b
	}
	if v == "0" || v == "false" {
		b := false
		return &b
	}
	return nil
}

// GetAutoSyncEnabled returns whether the watch daemon flushes automatically.
// Priority: EXAMSYNC_AUTO_SYNC env > config.json server.auto.enabled > true.
func GetAutoSyncEnabled() bool {
	if v := parseBoolEnv("EXAMSYNC_AUTO_SYNC"); v != nil {
		return *v
	}
	cfg, err := Load()
	if err == nil && cfg.Server.Auto.Enabled != nil {
		return *cfg.Server.Auto.Enabled
	}
	return true
}

// GetAutoSyncOnStart returns whether the watch daemon drains on startup.
// Priority: EXAMSYNC_AUTO_START env > config.json server.auto.on_start > true.
func GetAutoSyncOnStart() bool {
	if v := parseBoolEnv("EXAMSYNC_AUTO_START"); v != nil {
		return *v
	}
	cfg, err := Load()
	if err == nil && cfg.Server.Auto.OnStart != nil {
		return *cfg.Server.Auto.OnStart
	}
	return true
}

// GetAutoSyncInterval returns the periodic flush interval for the watch
// daemon. Priority: EXAMSYNC_AUTO_INTERVAL env > config.json
// server.auto.interval > 5m.
func GetAutoSyncInterval() time.Duration {
	if v := os.Getenv("EXAMSYNC_AUTO_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Server.Auto.Interval != "" {
		if d, err := time.ParseDuration(cfg.Server.Auto.Interval); err == nil && d > 0 {
			return d
		}
	}
	return 5 * time.Minute
}
