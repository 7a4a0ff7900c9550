package config

import (
	"fmt"
	"strconv"
	"time"
)

// LookupFunc reports the value of an environment variable. os.LookupEnv
// satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays set, non-empty environment variables onto c.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("BLOB_BACKEND", &c.Blob.Backend)
	e.str("GCS_BUCKET", &c.Blob.Bucket)
	e.str("BUCKET_CREDENTIALS", &c.Blob.CredentialsPath)
	e.str("MINIO_ENDPOINT", &c.Blob.Minio.Endpoint)
	e.str("MINIO_ACCESS_KEY", &c.Blob.Minio.AccessKey)
	e.str("MINIO_SECRET_KEY", &c.Blob.Minio.SecretKey)
	e.boolean("MINIO_USE_SSL", &c.Blob.Minio.UseSSL)

	e.str("INDEX_BACKEND", &c.Index.Backend)
	e.str("INDEX_PATH", &c.Index.Path)
	e.str("COLLECTION_NAME", &c.Index.Collection)
	e.str("COLLECTION_ID", &c.Index.CollectionID)
	e.str("GCS_PREFIX", &c.Index.BackupPrefix)
	e.str("QDRANT_HOST", &c.Index.Qdrant.Host)
	e.integer("QDRANT_PORT", &c.Index.Qdrant.Port)
	e.str("QDRANT_API_KEY", &c.Index.Qdrant.APIKey)
	e.boolean("QDRANT_USE_TLS", &c.Index.Qdrant.UseTLS)

	e.str("SOURCE_PREFIX", &c.Source.Prefix)
	e.str("SOURCE_FILTER", &c.Source.Filter)

	e.integer("BATCH_SIZE", &c.Ingest.BatchSize)
	e.integer("CHUNK_SIZE", &c.Ingest.ChunkSize)
	e.integer("INGEST_MAX_ATTEMPTS", &c.Ingest.MaxAttempts)
	e.duration("INGEST_RETRY_DELAY", &c.Ingest.RetryDelay)
	e.integer("SYNC_WORKERS", &c.Sync.Workers)

	e.str("EMBEDDING_HOST", &c.AI.EmbeddingHost)
	e.str("EMBEDDING_MODEL", &c.AI.EmbeddingModel)
	e.integer("EMBEDDING_BATCH_SIZE", &c.AI.EmbeddingBatchSize)
	e.float("EMBEDDING_RPS", &c.AI.RequestsPerSecond)
	e.str("GENERATOR_HOST", &c.AI.GeneratorHost)
	e.str("GENERATOR_MODEL", &c.AI.GeneratorModel)
	e.str("OPENAI_API_KEY", &c.AI.Token)

	e.str("LISTEN_ADDR", &c.Server.Addr)

	return e.err
}

// envReader records the first parse failure and skips later variables.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key, value string, err error) {
	e.err = fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = f
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}
