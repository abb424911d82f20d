package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/blob"
	blobFs "github.com/marmos91/dittodrive/pkg/blob/fs"
	blobMemory "github.com/marmos91/dittodrive/pkg/blob/memory"
	blobS3 "github.com/marmos91/dittodrive/pkg/blob/s3"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/gc"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/metadata/badger"
	"github.com/marmos91/dittodrive/pkg/metadata/memory"
	metadataSQL "github.com/marmos91/dittodrive/pkg/metadata/sql"
	"github.com/marmos91/dittodrive/pkg/usage"
	usageRedis "github.com/marmos91/dittodrive/pkg/usage/redis"
	"github.com/mitchellh/mapstructure"
)

// decodeOptions decodes a type-specific options map into out, accepting
// duration strings such as "500ms".
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// CreateMetadataStore creates a metadata store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/metadata/memory (in-memory storage, ephemeral)
//   - "badger": Uses pkg/metadata/badger (BadgerDB storage, persistent)
//   - "sql": Uses pkg/metadata/sql (GORM over sqlite or mysql)
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return memory.NewMemoryMetadataStore(), nil
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger)
	case "sql":
		return createSQLMetadataStore(ctx, cfg.SQL)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger, sql)", cfg.Type)
	}
}

// createBadgerMetadataStore creates a BadgerDB-based persistent metadata store.
func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	type BadgerMetadataStoreOptions struct {
		DBPath           string `mapstructure:"db_path"`
		BlockCacheSizeMB int64  `mapstructure:"block_cache_mb"`
		IndexCacheSizeMB int64  `mapstructure:"index_cache_mb"`
	}

	var storeOpts BadgerMetadataStoreOptions
	if err := decodeOptions(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
	}

	if storeOpts.DBPath == "" {
		return nil, fmt.Errorf("badger metadata store: db_path is required")
	}

	store, err := badger.NewBadgerMetadataStore(ctx, badger.BadgerMetadataStoreConfig{
		DBPath:           storeOpts.DBPath,
		BlockCacheSizeMB: storeOpts.BlockCacheSizeMB,
		IndexCacheSizeMB: storeOpts.IndexCacheSizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}

	return store, nil
}

// createSQLMetadataStore creates a GORM-backed metadata store.
func createSQLMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	type SQLMetadataStoreOptions struct {
		Dialect            string        `mapstructure:"dialect"`
		DSN                string        `mapstructure:"dsn"`
		MaxOpenConns       int           `mapstructure:"max_open_conns"`
		SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	}

	var storeOpts SQLMetadataStoreOptions
	if err := decodeOptions(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode sql metadata store options: %w", err)
	}

	if storeOpts.DSN == "" {
		return nil, fmt.Errorf("sql metadata store: dsn is required")
	}

	store, err := metadataSQL.NewSQLMetadataStore(ctx, metadataSQL.SQLMetadataStoreConfig{
		Dialect:            storeOpts.Dialect,
		DSN:                storeOpts.DSN,
		MaxOpenConns:       storeOpts.MaxOpenConns,
		SlowQueryThreshold: storeOpts.SlowQueryThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sql metadata store: %w", err)
	}

	return store, nil
}

// CreateBlobStore creates a blob store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/blob/memory (ephemeral, for development)
//   - "filesystem": Uses pkg/blob/fs (local filesystem storage)
//   - "s3": Uses pkg/blob/s3 (Amazon S3 or compatible storage)
func CreateBlobStore(ctx context.Context, cfg *BlobConfig) (blob.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	urls := blob.URLBuilder{BaseURL: cfg.BaseURL, ThumbnailQuery: cfg.ThumbnailQuery}

	switch cfg.Type {
	case "memory":
		return blobMemory.NewMemoryBlobStore(urls), nil
	case "filesystem":
		return createFilesystemBlobStore(ctx, cfg.Filesystem, urls)
	case "s3":
		return createS3BlobStore(ctx, cfg.S3, urls)
	default:
		return nil, fmt.Errorf("unknown blob store type: %q (supported: memory, filesystem, s3)", cfg.Type)
	}
}

// createFilesystemBlobStore creates a filesystem-based blob store.
func createFilesystemBlobStore(ctx context.Context, options map[string]any, urls blob.URLBuilder) (blob.Store, error) {
	type FilesystemBlobStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemBlobStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem blob store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem blob store: path is required")
	}

	store, err := blobFs.NewFSBlobStore(ctx, storeCfg.Path, urls)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem blob store: %w", err)
	}

	return store, nil
}

// S3Options are the options of the "s3" blob store section.
type S3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// createS3BlobStore creates an S3-based blob store.
func createS3BlobStore(ctx context.Context, options map[string]any, urls blob.URLBuilder) (blob.Store, error) {
	var storeCfg S3Options
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 blob store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 blob store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 blob store: region is required")
	}

	client, err := NewS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := blobS3.NewS3BlobStore(ctx, blobS3.S3BlobStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		URLs:      urls,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
	}

	logger.Info("S3 blob store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// NewS3Client builds an S3 client from the blob.s3 options.
//
// Static credentials are used when both keys are set, otherwise the
// default AWS credential chain applies. A custom endpoint (MinIO,
// Localstack) switches to path-style addressing.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Default to 10 attempts, above the SDK default of 3
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// CreateUsageCache creates the per-owner usage cache.
//
// Supported types:
//   - "none": every ComputeUsage call sums the owner's records
//   - "memory": process-local cache with TTL expiry
//   - "redis": shared cache, for several instances behind one API
func CreateUsageCache(ctx context.Context, cfg *UsageConfig) (usage.Cache, error) {
	switch cfg.Cache {
	case "none":
		return usage.NewNoopCache(), nil
	case "memory":
		return usage.NewMemoryCache(cfg.TTL), nil
	case "redis":
		cache, err := usageRedis.NewRedisCache(ctx, usageRedis.RedisCacheConfig{
			URL:       cfg.Redis.URL,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis usage cache: %w", err)
		}
		return cache, nil
	default:
		return nil, fmt.Errorf("unknown usage cache type: %q (supported: none, memory, redis)", cfg.Cache)
	}
}

// ServiceConfig converts the drive section into a drive.Config.
func (c DriveConfig) ServiceConfig() drive.Config {
	return drive.Config{
		RootPrefix:       c.RootPrefix,
		AllowedMimeTypes: append([]string(nil), c.AllowedMimeTypes...),
	}
}

// AccountantConfig converts the drive quota into a usage.Config.
func (c DriveConfig) AccountantConfig() (usage.Config, error) {
	quota, err := c.QuotaBytes()
	if err != nil {
		return usage.Config{}, err
	}
	return usage.Config{Quota: quota}, nil
}

// CollectorConfig converts the gc section into a gc.Config. The sweep is
// restricted to the drive's root prefix.
func (c GCConfig) CollectorConfig(rootPrefix string) gc.Config {
	return gc.Config{
		Enabled:     c.Enabled,
		Interval:    c.Interval,
		GracePeriod: c.GracePeriod,
		Prefix:      rootPrefix,
		DryRun:      c.DryRun,
		RunTimeout:  c.RunTimeout,
	}
}
