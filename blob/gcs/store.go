// Package gcs implements blob.Store on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/poiesic/finwhiz/blob"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	logger *slog.Logger
}

type Option func(*Store) error

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// Open connects to bucket. credentialsPath names a service account key file;
// when empty, application default credentials are used.
func Open(ctx context.Context, bucket, credentialsPath string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, blob.ErrEmptyBucket
	}

	var clientOpts []option.ClientOption
	if credentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	s := &Store{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			client.Close()
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "gcs-store", "bucket", bucket)
	return s, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var infos []blob.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing gs://%s/%s: %w", s.name, prefix, err)
		}
		infos = append(infos, blob.ObjectInfo{Name: attrs.Name, Size: attrs.Size})
	}
	s.logger.Debug("listed objects", "prefix", prefix, "count", len(infos))
	return infos, nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", blob.ErrNotFound, s.name, name)
	}
	if err != nil {
		return nil, fmt.Errorf("opening gs://%s/%s: %w", s.name, name, err)
	}
	return r, nil
}

func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if name == "" {
		return blob.ErrInvalidName
	}
	obj := s.bucket.Object(name)
	err := upload(ctx, r, func(ctx context.Context) io.WriteCloser {
		return obj.NewWriter(ctx)
	})
	if err != nil {
		return fmt.Errorf("gs://%s/%s: %w", s.name, name, err)
	}
	s.logger.Debug("uploaded object", "name", name, "size", size)
	return nil
}

// upload copies r into a writer bound to a child of ctx. A GCS writer only
// commits the object on Close, and cancelling its context first discards the
// partial upload instead.
func upload(ctx context.Context, r io.Reader, open func(context.Context) io.WriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := open(ctx)
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("uploading: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ blob.Store = (*Store)(nil)
