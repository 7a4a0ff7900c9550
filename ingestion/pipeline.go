package ingestion

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/source"
	"github.com/poiesic/finwhiz/storage"
)

// Stats summarizes an ingestion run.
type Stats struct {
	Objects        int
	Records        int
	SkippedRecords int // records without text
	Chunks         int
	Flushes        int
	Retries        int // flush attempts beyond the first
}

func (s *Stats) add(o Stats) {
	s.Objects += o.Objects
	s.Records += o.Records
	s.SkippedRecords += o.SkippedRecords
	s.Chunks += o.Chunks
	s.Flushes += o.Flushes
	s.Retries += o.Retries
}

type Pipeline struct {
	flusher   *flusher
	batchSize int
	chunkSize int
	retry     RetryPolicy
	progress  io.Writer
	logger    *slog.Logger
}

type Option func(*Pipeline) error

// WithBatchSize sets the number of chunks embedded and written per flush.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		p.batchSize = size
		return nil
	}
}

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		p.chunkSize = size
		return nil
	}
}

// WithRetry retries a failed flush up to maxAttempts times in total, with
// exponential backoff starting at baseDelay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.retry = RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay}
		return nil
	}
}

// WithProgress reports per-object progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

func NewPipeline(index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		batchSize: DefaultBatchSize,
		chunkSize: core.DefaultChunkSize,
		retry:     NoRetry,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	p.flusher = &flusher{
		index:    index,
		embedder: embedder,
		logger:   p.logger,
	}
	return p, nil
}

// Ingest consumes one record stream. Chunks are flushed whenever the batch
// fills and once more at the end of the stream. name identifies the stream in
// logs and errors.
func (p *Pipeline) Ingest(ctx context.Context, name string, records iter.Seq2[*core.SourceRecord, error]) (Stats, error) {
	stats := Stats{Objects: 1}

	batch, err := NewBatch(p.batchSize)
	if err != nil {
		return stats, err
	}

	flush := func() error {
		p.logger.Debug("flushing batch", "object", name, "chunks", batch.Len(), "capacity", batch.Cap())
		chunks := batch.Drain()
		policy := p.retry
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			p.logger.Warn("flush failed, retrying", "object", name, "chunks", len(chunks),
				"attempt", attempt, "delay", delay, "err", err)
		}
		attempts, err := policy.Do(ctx, func() error {
			return p.flusher.flush(ctx, chunks)
		})
		if attempts > 1 {
			stats.Retries += attempts - 1
		}
		if err != nil {
			return fmt.Errorf("flushing %d chunks from %s: %w", len(chunks), name, err)
		}
		stats.Flushes++
		return nil
	}

	for record, err := range records {
		if err != nil {
			p.logger.Error("record stream failed", "object", name, "dropped_chunks", batch.Len(), "err", err)
			batch.Reset()
			return stats, err
		}
		stats.Records++

		if err := core.ValidateSourceRecord(record); err != nil {
			batch.Reset()
			return stats, fmt.Errorf("%s record %d: %w", name, stats.Records, err)
		}

		chunks := core.ChunkRecord(record, p.chunkSize)
		if len(chunks) == 0 {
			stats.SkippedRecords++
			continue
		}

		for _, chunk := range chunks {
			stats.Chunks++
			if batch.Append(chunk) {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
	}

	if batch.Len() > 0 {
		if err := flush(); err != nil {
			return stats, err
		}
	}

	p.logger.Debug("ingested stream", "object", name, "records", stats.Records,
		"chunks", stats.Chunks, "flushes", stats.Flushes)
	return stats, nil
}

// IngestObjects ingests every object under prefix matching filter, in listing
// order. It stops at the first failing object.
func (p *Pipeline) IngestObjects(ctx context.Context, reader *source.Reader, prefix, filter string) (Stats, error) {
	var total Stats
	if reader == nil {
		return total, ErrReaderRequired
	}

	objects, err := reader.Objects(ctx, prefix, filter)
	if err != nil {
		return total, fmt.Errorf("listing source objects: %w", err)
	}
	p.logger.Info("starting ingestion", "objects", len(objects), "prefix", prefix, "filter", filter)

	var progress *Progress
	if p.progress != nil {
		progress = NewObjectProgress(p.progress, len(objects))
	}

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		stats, err := p.Ingest(ctx, obj.Name, reader.Records(ctx, obj))
		total.add(stats)
		if err != nil {
			return total, err
		}

		p.logger.Info("ingested object", "object", obj.Name, "format", obj.Format.String(),
			"records", stats.Records, "chunks", stats.Chunks)
		if progress != nil {
			progress.ObjectDone(obj.Name, stats)
		}
	}

	if progress != nil {
		progress.Finish()
	}
	p.logger.Info("ingestion complete", "objects", total.Objects, "records", total.Records,
		"skipped", total.SkippedRecords, "chunks", total.Chunks, "flushes", total.Flushes,
		"retries", total.Retries)
	return total, nil
}
