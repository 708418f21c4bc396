package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"budgetsync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Network    NetworkConfig    `yaml:"network"`
	Remote     RemoteConfig     `yaml:"remote"`
	Exports    ExportConfig     `yaml:"exports"`
	Sync       SyncSettings     `yaml:"sync"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite or redis
	Path    string `yaml:"path"`    // sqlite file location
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type NetworkConfig struct {
	ProbeAddress    string `yaml:"probe_address"`
	ProbeIntervalMs int64  `yaml:"probe_interval_ms"`
	ProbeTimeoutMs  int64  `yaml:"probe_timeout_ms"`
}

func (c NetworkConfig) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalMs) * time.Millisecond
}

func (c NetworkConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// RemoteConfig points the bundled HTTP executor at the backend API. The
// engine itself never reads this; handlers are injected.
type RemoteConfig struct {
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	TimeoutMs int64    `yaml:"timeout_ms"`
	Entities  []string `yaml:"entities"`
}

func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// SyncSettings are the startup defaults for the runtime sync config; once a
// config record exists in the store it wins over this section.
type SyncSettings struct {
	MaxRetries         int    `yaml:"max_retries"`
	RetryDelayMs       int64  `yaml:"retry_delay_ms"`
	SyncIntervalMs     int64  `yaml:"sync_interval_ms"`
	AutoSync           *bool  `yaml:"auto_sync"`
	ConflictResolution string `yaml:"conflict_resolution"`
	EnableOfflineMode  *bool  `yaml:"enable_offline_mode"`
}

// SyncConfig converts the yaml section to the runtime model, with defaults
// for anything left unset.
func (c *Config) SyncConfig() models.SyncConfig {
	out := models.DefaultSyncConfig()
	if c.Sync.MaxRetries > 0 {
		out.MaxRetries = c.Sync.MaxRetries
	}
	if c.Sync.RetryDelayMs > 0 {
		out.RetryDelayMs = c.Sync.RetryDelayMs
	}
	if c.Sync.SyncIntervalMs > 0 {
		out.SyncIntervalMs = c.Sync.SyncIntervalMs
	}
	if c.Sync.AutoSync != nil {
		out.AutoSync = *c.Sync.AutoSync
	}
	if c.Sync.ConflictResolution != "" {
		out.ConflictResolution = c.Sync.ConflictResolution
	}
	if c.Sync.EnableOfflineMode != nil {
		out.EnableOfflineMode = *c.Sync.EnableOfflineMode
	}
	return out
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment wins either way.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if err := c.SyncConfig().Validate(); err != nil {
		return err
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "budgetsync"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQLite
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Network.ProbeAddress == "" {
		c.Network.ProbeAddress = "1.1.1.1:443"
	}
	if c.Network.ProbeIntervalMs == 0 {
		c.Network.ProbeIntervalMs = 5000
	}
	if c.Network.ProbeTimeoutMs == 0 {
		c.Network.ProbeTimeoutMs = 3000
	}
	if c.Remote.TimeoutMs == 0 {
		c.Remote.TimeoutMs = 10000
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
