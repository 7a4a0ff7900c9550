package config

import "errors"

var (
	// ErrMissingBucket is returned when no bucket is configured.
	ErrMissingBucket = errors.New("GCS_BUCKET is required")

	// ErrMissingCredentials is returned when the gcs backend has no credentials file.
	ErrMissingCredentials = errors.New("BUCKET_CREDENTIALS is required for the gcs backend")

	// ErrMissingMinioEndpoint is returned when the minio backend has no endpoint.
	ErrMissingMinioEndpoint = errors.New("MINIO_ENDPOINT is required for the minio backend")

	// ErrMissingIndexPath is returned when the local backend has no index path.
	ErrMissingIndexPath = errors.New("INDEX_PATH is required for the local backend")

	// ErrUnknownBackend is returned for an unrecognized blob or index backend.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrInvalidValue is returned when a setting cannot be parsed or is out of range.
	ErrInvalidValue = errors.New("invalid config value")
)
