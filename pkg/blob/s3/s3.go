package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/blob"
)

// S3BlobStore implements blob.Store using Amazon S3 or S3-compatible storage.
//
// Key Design:
//   - StorageID is the object path inside the drive ("storex/u1/<uuid>.pdf")
//   - The S3 key is KeyPrefix + StorageID
//   - The bucket mirrors the drive layout and stays human-inspectable
//
// Thread Safety:
// Safe for concurrent use; the S3 client is goroutine-safe.
type S3BlobStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	urls      blob.URLBuilder
}

// S3BlobStoreConfig contains configuration for the S3 blob store.
type S3BlobStoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "dittodrive/" results in keys like "dittodrive/storex/u1/abc.pdf"
	KeyPrefix string

	// URLs builds public URLs for stored keys
	URLs blob.URLBuilder
}

// NewS3BlobStore creates a new S3-based blob store.
//
// The bucket must already exist; access is verified with HeadBucket.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3BlobStore: Initialized store
//   - error: Returns error if bucket access fails or context is cancelled
func NewS3BlobStore(ctx context.Context, cfg S3BlobStoreConfig) (*S3BlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3BlobStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		urls:      cfg.URLs,
	}, nil
}

// objectKey returns the full S3 key for a storage id.
func (s *S3BlobStore) objectKey(storageID string) string {
	return s.keyPrefix + storageID
}

// unavailable wraps an S3 error as a backend failure. Context errors pass through.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("s3 %s: %w: %v", op, blob.ErrBackendUnavailable, err)
}

// Put implements blob.Store using PutObject.
func (s *S3BlobStore) Put(ctx context.Context, data []byte, dir, name, contentType string) (*blob.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := blob.ObjectKey(dir, name)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, unavailable("put", err)
	}

	logger.Debug("S3 put: bucket=%s key=%s size=%d", s.bucket, s.objectKey(key), len(data))
	return s.urls.Result(key, contentType), nil
}

// Delete implements blob.Store using DeleteObject.
//
// S3 reports success for missing keys; NoSuchKey from S3-compatible
// services that do report it is treated the same way.
func (s *S3BlobStore) Delete(ctx context.Context, storageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.ValidateStorageID(storageID); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(storageID)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil
		}
		return unavailable("delete", err)
	}
	return nil
}

// Open implements blob.Reader using GetObject.
func (s *S3BlobStore) Open(ctx context.Context, storageID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := blob.ValidateStorageID(storageID); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(storageID)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("blob %s: %w", storageID, blob.ErrNotFound)
		}
		return nil, unavailable("get", err)
	}
	return result.Body, nil
}

// List implements blob.Lister using ListObjectsV2.
func (s *S3BlobStore) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	var infos []blob.ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable("list", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			info := blob.ObjectInfo{
				StorageID: strings.TrimPrefix(key, s.keyPrefix),
				Size:      aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

var (
	_ blob.Store  = (*S3BlobStore)(nil)
	_ blob.Reader = (*S3BlobStore)(nil)
	_ blob.Lister = (*S3BlobStore)(nil)
)
