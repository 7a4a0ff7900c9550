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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/ingestion"
	"github.com/poiesic/finwhiz/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of entries to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of entries)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      ingestion.DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Index is a vector index that can also be paged through.
type Index interface {
	storage.VectorIndex
	storage.Scanner
}

// Reembedder orchestrates the reembedding of all entries in an index.
type Reembedder struct {
	index     Index
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(index Index, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ingestion.ErrInvalidBatchSize, config.BatchSize)
	}
	if config.MaxRetries <= 0 {
		return nil, ingestion.ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		index:     index,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(index, embedder, config.MaxRetries, config.RetryDelay),
		logger:    slog.Default().With("component", "reembedder"),
	}, nil
}

// Run re-embeds every entry in the index. Progress is reported to the
// configured writer. Entries already rewritten stay rewritten if a later
// batch fails.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No entries found in index (0 entries)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d entries (batch size: %d)\n",
		total, r.config.BatchSize)
	r.logger.Info("reembedding", "entries", total, "batch_size", r.config.BatchSize)

	progress := ingestion.NewEntryProgress(r.progress, total, r.config.ReportInterval)

	processed := 0
	err = r.index.Scan(ctx, r.config.BatchSize, func(entries []*core.IndexEntry) error {
		if err := r.processor.Process(ctx, entries); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(entries)
		progress.EntriesDone(len(entries))
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding failed", "processed", processed, "err", err)
		return err
	}

	totals := progress.Finish()
	elapsed := progress.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d entries in %d batches in %v (%.1f entries/sec)\n",
		processed, totals.Flushes, elapsed.Round(time.Second), float64(processed)/max(elapsed.Seconds(), 1e-9))

	return nil
}
