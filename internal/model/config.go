package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Conflict policies applied when a pulled row collides with a dirty local row.
const (
	ConflictRemoteWins    = "remote_wins"
	ConflictLastWriteWins = "last_write_wins"
)

// DefaultBaseURL is the production sync server.
const DefaultBaseURL = "https://taskmanageruofl-af62f00a6541.herokuapp.com"

// ServerConfig holds settings for the remote sync server.
type ServerConfig struct {
	// BaseURL is the root URL of the sync server.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries bounds retries of throttled or unavailable responses.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// SyncConfig holds synchronization policy.
type SyncConfig struct {
	// IntervalSec is how often the background runner syncs.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// TokenTTLDays is the age after which a stored token is considered expired.
	TokenTTLDays int `mapstructure:"token_ttl_days" yaml:"token_ttl_days"`

	// ConflictPolicy is one of ConflictRemoteWins or ConflictLastWriteWins.
	ConflictPolicy string `mapstructure:"conflict_policy" yaml:"conflict_policy"`
}

// StorageConfig holds the location of the local database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// KeyringConfig selects where secrets are kept.
type KeyringConfig struct {
	// Backend forces a keyring backend ("file"); empty uses the OS default.
	Backend string `mapstructure:"backend" yaml:"backend"`
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	File      string `mapstructure:"file" yaml:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
}

// MetricsConfig controls the prometheus endpoint of the daemon.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Keyring KeyringConfig `mapstructure:"keyring" yaml:"keyring"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// configDir returns ~/.config/remindly, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "remindly")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/remindly/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:    DefaultBaseURL,
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Sync: SyncConfig{
			IntervalSec:    300,
			TokenTTLDays:   7,
			ConflictPolicy: ConflictRemoteWins,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(configDir(), "remindly.db"),
		},
		Keyring: KeyringConfig{
			FileDir: filepath.Join(configDir(), "credentials"),
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// REMINDLY_* environment variables override file values. If the file does
// not exist, the defaults (plus environment overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("REMINDLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so that
	// AutomaticEnv knows every key.
	v.SetDefault("server.base_url", def.Server.BaseURL)
	v.SetDefault("server.timeout_sec", def.Server.TimeoutSec)
	v.SetDefault("server.max_retries", def.Server.MaxRetries)
	v.SetDefault("sync.interval_sec", def.Sync.IntervalSec)
	v.SetDefault("sync.token_ttl_days", def.Sync.TokenTTLDays)
	v.SetDefault("sync.conflict_policy", def.Sync.ConflictPolicy)
	v.SetDefault("storage.db_path", def.Storage.DBPath)
	v.SetDefault("keyring.backend", def.Keyring.Backend)
	v.SetDefault("keyring.file_dir", def.Keyring.FileDir)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("metrics.addr", def.Metrics.Addr)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("server.base_url must not be empty")
	}
	if c.Sync.IntervalSec <= 0 {
		return fmt.Errorf("sync.interval_sec must be positive, got %d", c.Sync.IntervalSec)
	}
	if c.Sync.TokenTTLDays <= 0 {
		return fmt.Errorf("sync.token_ttl_days must be positive, got %d", c.Sync.TokenTTLDays)
	}
	switch c.Sync.ConflictPolicy {
	case ConflictRemoteWins, ConflictLastWriteWins:
	default:
		return fmt.Errorf("sync.conflict_policy %q is not one of %s, %s",
			c.Sync.ConflictPolicy, ConflictRemoteWins, ConflictLastWriteWins)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server.base_url", cfg.Server.BaseURL)
	v.Set("server.timeout_sec", cfg.Server.TimeoutSec)
	v.Set("server.max_retries", cfg.Server.MaxRetries)
	v.Set("sync.interval_sec", cfg.Sync.IntervalSec)
	v.Set("sync.token_ttl_days", cfg.Sync.TokenTTLDays)
	v.Set("sync.conflict_policy", cfg.Sync.ConflictPolicy)
	v.Set("storage.db_path", cfg.Storage.DBPath)
	v.Set("keyring.backend", cfg.Keyring.Backend)
	v.Set("keyring.file_dir", cfg.Keyring.FileDir)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.Set("metrics.addr", cfg.Metrics.Addr)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
