// Package storage provides object storage, warehouse, and metadata-store
// implementations for the pipeline.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/coindata-pipeline/internal/config"
)

// ObjectStore wraps the S3-compatible object storage client for one bucket
type ObjectStore struct {
	client *minio.Client
	cfg    *config.ObjectStoreConfig
}

// NewObjectStore creates a new object storage client
func NewObjectStore(cfg *config.ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &ObjectStore{client: client, cfg: cfg}, nil
}

// Bucket returns the configured bucket name
func (s *ObjectStore) Bucket() string {
	return s.cfg.Bucket
}

// EnsureBucket creates the bucket if it does not exist
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

// Upload copies a local file to the bucket under the given key. Re-uploading
// to the same key overwrites the prior object.
func (s *ObjectStore) Upload(ctx context.Context, localPath, key string) error {
	_, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(localPath),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, s.cfg.Bucket, key, err)
	}
	return nil
}

// Exists reports whether an object is present at the given key
func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return true, nil
}

// GetObject opens an object for reading
func (s *ObjectStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return obj, nil
}

// ObjectURL returns the plain HTTP(S) URL of an object, suitable for the
// warehouse's s3() bulk-load function.
func (s *ObjectStore) ObjectURL(key string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, strings.TrimPrefix(key, "/"))
}

// Credentials returns the access and secret keys for the s3() bulk load
func (s *ObjectStore) Credentials() (accessKey, secretKey string) {
	return s.cfg.AccessKey, s.cfg.SecretKey
}

// contentTypeFor picks a content type from the file extension
func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".log", ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
