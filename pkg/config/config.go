package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittodrive/pkg/api"
	"github.com/spf13/viper"
)

// Config represents the complete DittoDrive configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTODRIVE_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each backend defines its own options, decoded by its factory from the
// map matching the selected type (e.g. metadata.badger, blob.s3). Only the
// section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metadata selects and configures the record store
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Blob selects and configures the file content backend
	Blob BlobConfig `mapstructure:"blob" yaml:"blob"`

	// Drive configures the file and folder operations
	Drive DriveConfig `mapstructure:"drive" yaml:"drive"`

	// Usage configures storage accounting
	Usage UsageConfig `mapstructure:"usage" yaml:"usage"`

	// GC configures the orphan blob sweep
	GC GCConfig `mapstructure:"gc" yaml:"gc"`

	// API configures the HTTP adapter.
	// Uses the api.Config type directly to avoid duplication.
	API api.Config `mapstructure:"api" yaml:"api"`

	// Metrics configures Prometheus collection and its listener
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// MetadataConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger, sql
	Type string `mapstructure:"type" validate:"required,oneof=memory badger sql" yaml:"type"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// SQL contains GORM-specific configuration (dialect, dsn, ...)
	// Only used when Type = "sql"
	SQL map[string]any `mapstructure:"sql" yaml:"sql"`
}

// BlobConfig specifies blob store configuration.
//
// The Type field determines which store implementation is used.
type BlobConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem s3" yaml:"type"`

	// BaseURL prefixes the public URL of every stored blob
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url" yaml:"base_url"`

	// ThumbnailQuery is appended to image URLs to request a preview
	// rendition. Empty disables thumbnail URLs.
	ThumbnailQuery string `mapstructure:"thumbnail_query" yaml:"thumbnail_query"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// DriveConfig configures the drive service.
type DriveConfig struct {
	// RootPrefix is the blob directory every owner's files live under
	RootPrefix string `mapstructure:"root_prefix" validate:"required,startswith=/" yaml:"root_prefix"`

	// AllowedMimeTypes is the upload allow-list ("image/*", "application/pdf")
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types" validate:"required,min=1,dive,required,contains=/" yaml:"allowed_mime_types"`

	// Quota is the per-owner storage quota, in human form ("15 GiB", "500MB")
	Quota string `mapstructure:"quota" validate:"required" yaml:"quota"`
}

// UsageConfig configures storage accounting.
type UsageConfig struct {
	// Cache selects where per-owner totals are cached
	// Valid values: none, memory, redis
	Cache string `mapstructure:"cache" validate:"required,oneof=none memory redis" yaml:"cache"`

	// TTL bounds how stale a cached total may be
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0" yaml:"ttl"`

	// Redis configures the shared cache
	// Only used when Cache = "redis"
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig locates the Redis usage cache.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection string
	URL string `mapstructure:"url" yaml:"url"`

	// KeyPrefix is prepended to owner ids
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// GCConfig configures the orphan blob sweep.
type GCConfig struct {
	// Enabled runs the sweep periodically in the background
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between sweeps
	Interval time.Duration `mapstructure:"interval" validate:"gte=0" yaml:"interval"`

	// GracePeriod protects blobs younger than this from deletion
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"gte=0" yaml:"grace_period"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// RunTimeout bounds a single sweep
	RunTimeout time.Duration `mapstructure:"run_timeout" validate:"gte=0" yaml:"run_timeout"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metrics collection on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port of the dedicated metrics listener (default 9090). The API also
	// serves /metrics.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`
}

// envKeys are the settings that can be overridden from the environment
// even when the config file does not mention them.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"metadata.type",
	"blob.type",
	"blob.base_url",
	"blob.thumbnail_query",
	"drive.root_prefix",
	"drive.quota",
	"usage.cache",
	"usage.ttl",
	"usage.redis.url",
	"gc.enabled",
	"gc.interval",
	"gc.grace_period",
	"gc.dry_run",
	"api.port",
	"api.jwt_secret",
	"api.jwt_issuer",
	"api.max_upload_bytes",
	"api.upload_rate_limit",
	"api.upload_burst",
	"metrics.enabled",
	"metrics.port",
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTODRIVE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTODRIVE_ prefix and underscores
	// Example: DITTODRIVE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTODRIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittodrive/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist surfaces as a plain
		// fs error rather than ConfigFileNotFoundError.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodrive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittodrive")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
