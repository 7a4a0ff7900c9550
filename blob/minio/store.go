// Package minio implements blob.Store on S3-compatible object storage.
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/poiesic/finwhiz/blob"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

type Option func(*Store) error

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// Open connects to the endpoint and creates the bucket if it does not exist.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, blob.ErrEmptyBucket
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client for %s: %w", cfg.Endpoint, err)
	}

	s := &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "minio-store", "bucket", cfg.Bucket)

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
		s.logger.Info("created bucket")
	}
	return s, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	var infos []blob.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing %s/%s: %w", s.bucket, prefix, obj.Err)
		}
		infos = append(infos, blob.ObjectInfo{Name: obj.Key, Size: obj.Size})
	}
	s.logger.Debug("listed objects", "prefix", prefix, "count", len(infos))
	return infos, nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("opening %s/%s: %w", s.bucket, name, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s", blob.ErrNotFound, s.bucket, name)
		}
		return nil, fmt.Errorf("opening %s/%s: %w", s.bucket, name, err)
	}
	return obj, nil
}

func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if name == "" {
		return blob.ErrInvalidName
	}
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("uploading %s/%s: %w", s.bucket, name, err)
	}
	s.logger.Debug("uploaded object", "name", name, "size", size)
	return nil
}

func (s *Store) Close() error {
	return nil
}

var _ blob.Store = (*Store)(nil)
