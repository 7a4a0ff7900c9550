// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/finwhiz/ai"
	"gopkg.in/yaml.v3"
)

// Blob backends.
const (
	BlobGCS   = "gcs"
	BlobMinio = "minio"
)

// Index backends.
const (
	IndexLocal  = "local"
	IndexQdrant = "qdrant"
)

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// BlobConfig locates the bucket holding both source records and index backups.
type BlobConfig struct {
	Backend         string      `yaml:"backend"`
	Bucket          string      `yaml:"bucket"`
	CredentialsPath string      `yaml:"credentials_path"`
	Minio           MinioConfig `yaml:"minio"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

type IndexConfig struct {
	Backend      string       `yaml:"backend"`
	Path         string       `yaml:"path"`
	Collection   string       `yaml:"collection"`
	CollectionID string       `yaml:"collection_id"`
	BackupPrefix string       `yaml:"backup_prefix"`
	Qdrant       QdrantConfig `yaml:"qdrant"`
}

// SourceConfig selects which objects ingestion reads.
type SourceConfig struct {
	Prefix string `yaml:"prefix"`
	Filter string `yaml:"filter"`
}

type IngestConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	ChunkSize   int           `yaml:"chunk_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

type SyncConfig struct {
	Workers int `yaml:"workers"`
}

type AIConfig struct {
	EmbeddingHost      string  `yaml:"embedding_host"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	EmbeddingBatchSize int     `yaml:"embedding_batch_size"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	GeneratorHost      string  `yaml:"generator_host"`
	GeneratorModel     string  `yaml:"generator_model"`
	Token              string  `yaml:"token"`
	PassagePrefix      string  `yaml:"passage_prefix"`
	QueryPrefix        string  `yaml:"query_prefix"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the complete service configuration.
type Config struct {
	Blob   BlobConfig   `yaml:"blob"`
	Index  IndexConfig  `yaml:"index"`
	Source SourceConfig `yaml:"source"`
	Ingest IngestConfig `yaml:"ingest"`
	Sync   SyncConfig   `yaml:"sync"`
	AI     AIConfig     `yaml:"ai"`
	Server ServerConfig `yaml:"server"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Blob: BlobConfig{
			Backend: BlobGCS,
		},
		Index: IndexConfig{
			Backend:      IndexLocal,
			Path:         "./chroma_storage",
			Collection:   "finwhiz_docs",
			BackupPrefix: "chroma_storage_backup",
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
		},
		Ingest: IngestConfig{
			BatchSize:   64,
			ChunkSize:   500,
			MaxAttempts: 1,
			RetryDelay:  time.Second,
		},
		Sync: SyncConfig{
			Workers: 4,
		},
		AI: AIConfig{
			EmbeddingHost:      aiDefaults.EmbeddingHost,
			EmbeddingModel:     aiDefaults.EmbeddingModel,
			EmbeddingBatchSize: aiDefaults.EmbeddingBatchSize,
			GeneratorHost:      aiDefaults.GeneratorHost,
			GeneratorModel:     aiDefaults.GeneratorModel,
			Token:              aiDefaults.Token,
			PassagePrefix:      aiDefaults.PassagePrefix,
			QueryPrefix:        aiDefaults.QueryPrefix,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment. Variables from dotenv files
// are loaded first without overriding ones already set; a missing .env is
// not an error.
func Load(path string, dotenv ...string) (*Config, error) {
	if err := LoadDotEnv(dotenv...); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given dotenv files, or ./.env when none are given.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile overlays the YAML document at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, path, err)
	}
	return nil
}

// Validate checks that required settings are present and in range.
func (c *Config) Validate() error {
	if c.Blob.Bucket == "" {
		return ErrMissingBucket
	}
	switch c.Blob.Backend {
	case BlobGCS:
		if c.Blob.CredentialsPath == "" {
			return ErrMissingCredentials
		}
	case BlobMinio:
		if c.Blob.Minio.Endpoint == "" {
			return ErrMissingMinioEndpoint
		}
	default:
		return fmt.Errorf("%w: blob backend %q", ErrUnknownBackend, c.Blob.Backend)
	}

	switch c.Index.Backend {
	case IndexLocal:
		if c.Index.Path == "" {
			return ErrMissingIndexPath
		}
	case IndexQdrant:
		if c.Index.Qdrant.Host == "" || c.Index.Qdrant.Port <= 0 {
			return fmt.Errorf("%w: qdrant address %s:%d", ErrInvalidValue, c.Index.Qdrant.Host, c.Index.Qdrant.Port)
		}
	default:
		return fmt.Errorf("%w: index backend %q", ErrUnknownBackend, c.Index.Backend)
	}

	if c.Index.Collection == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidValue)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidValue, c.Ingest.BatchSize)
	}
	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk size %d", ErrInvalidValue, c.Ingest.ChunkSize)
	}
	if c.Ingest.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts %d", ErrInvalidValue, c.Ingest.MaxAttempts)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("%w: sync workers %d", ErrInvalidValue, c.Sync.Workers)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: listen address cannot be empty", ErrInvalidValue)
	}
	return nil
}

// AIConfig converts the AI settings into a normalized ai.Config.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGeneratorHost(c.AI.GeneratorHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGeneratorModel(c.AI.GeneratorModel),
		ai.WithToken(c.AI.Token),
		ai.WithModePrefixes(c.AI.PassagePrefix, c.AI.QueryPrefix),
		ai.WithEmbeddingBatchSize(c.AI.EmbeddingBatchSize),
		ai.WithRequestsPerSecond(c.AI.RequestsPerSecond),
	)
	cfg.Normalize()
	return cfg
}
