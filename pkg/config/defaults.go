package config

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/usage"
)

// DefaultAPIPort is the port the HTTP API listens on when none is configured.
const DefaultAPIPort = 8080

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetadataDefaults(&cfg.Metadata)
	applyBlobDefaults(&cfg.Blob)
	applyDriveDefaults(&cfg.Drive)
	applyUsageDefaults(&cfg.Usage)
	applyGCDefaults(&cfg.GC)

	if cfg.API.Port == 0 {
		cfg.API.Port = DefaultAPIPort
	}
	cfg.API.ApplyDefaults()

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetadataDefaults sets metadata store defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.SQL == nil {
		cfg.SQL = make(map[string]any)
	}

	// Filled for every type so generated config files document them
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittodrive-metadata"
	}
	if _, ok := cfg.SQL["dialect"]; !ok {
		cfg.SQL["dialect"] = "sqlite"
	}
	if _, ok := cfg.SQL["dsn"]; !ok {
		cfg.SQL["dsn"] = "/tmp/dittodrive-metadata.db"
	}
}

// applyBlobDefaults sets blob store defaults.
func applyBlobDefaults(cfg *BlobConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/dittodrive-blobs"
	}
}

// applyDriveDefaults fills the drive section from drive.DefaultConfig.
func applyDriveDefaults(cfg *DriveConfig) {
	defaults := drive.DefaultConfig()

	if cfg.RootPrefix == "" {
		cfg.RootPrefix = defaults.RootPrefix
	}
	if len(cfg.AllowedMimeTypes) == 0 {
		cfg.AllowedMimeTypes = defaults.AllowedMimeTypes
	}
	if cfg.Quota == "" {
		cfg.Quota = humanize.IBytes(uint64(usage.DefaultQuota))
	}
}

func applyUsageDefaults(cfg *UsageConfig) {
	if cfg.Cache == "" {
		cfg.Cache = "memory"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 30 * time.Second
	}
}

// applyGCDefaults sets orphan sweep defaults. The sweep itself stays
// disabled unless explicitly enabled.
func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = time.Hour
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// The JWT secret is left empty: a default configuration only validates
// once a secret is supplied (InitConfig generates one).
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
