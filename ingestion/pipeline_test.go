package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/ai/mock"
	"github.com/poiesic/finwhiz/blob/memory"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/source"
	"github.com/poiesic/finwhiz/storage"
	"github.com/poiesic/finwhiz/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingIndex wraps a real index and records every Add call.
type recordingIndex struct {
	storage.VectorIndex
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingIndex) Add(ctx context.Context, entries ...*core.IndexEntry) error {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	r.mu.Lock()
	r.calls = append(r.calls, ids)
	r.mu.Unlock()
	return r.VectorIndex.Add(ctx, entries...)
}

func newTestIndex(t *testing.T) (*recordingIndex, *badger.Index) {
	t.Helper()
	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})
	return &recordingIndex{VectorIndex: index}, index
}

func strPtr(s string) *string { return &s }

func record(id, text string) *core.SourceRecord {
	rec := &core.SourceRecord{ID: id}
	if text != "" {
		rec.Text = strPtr(text)
	}
	return rec
}

func stream(records ...*core.SourceRecord) iter.Seq2[*core.SourceRecord, error] {
	return func(yield func(*core.SourceRecord, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func failingStream(err error, records ...*core.SourceRecord) iter.Seq2[*core.SourceRecord, error] {
	return func(yield func(*core.SourceRecord, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
		yield(nil, err)
	}
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	index, _ := newTestIndex(t)

	_, err := NewPipeline(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewPipeline(index, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(index, mock.NewMockEmbedder(), WithBatchSize(0))
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	_, err = NewPipeline(index, mock.NewMockEmbedder(), WithRetry(0, time.Millisecond))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestPipeline_EndToEndScenario(t *testing.T) {
	index, stored := newTestIndex(t)
	embedder := mock.NewMockEmbedder()
	pipeline, err := NewPipeline(index, embedder, WithBatchSize(2), WithChunkSize(500))
	require.NoError(t, err)

	r1 := strings.Repeat("a", 1200)
	r3 := strings.Repeat("c", 300)
	stats, err := pipeline.Ingest(context.Background(), "scenario",
		stream(record("r1", r1), record("r2", ""), record("r3", r3)))
	require.NoError(t, err)

	assert.Equal(t, Stats{Objects: 1, Records: 3, SkippedRecords: 1, Chunks: 4, Flushes: 2}, stats)
	assert.Equal(t, [][]string{
		{"r1_chunk0", "r1_chunk1"},
		{"r1_chunk2", "r3_chunk0"},
	}, index.calls)

	ctx := context.Background()
	lengths := map[string]int{"r1_chunk0": 500, "r1_chunk1": 500, "r1_chunk2": 200, "r3_chunk0": 300}
	for id, length := range lengths {
		entry, err := stored.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Len(t, entry.Document, length, id)
	}
	count, err := stored.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	for _, text := range embedder.Texts() {
		assert.NotEmpty(t, text, "empty text must never reach the embedder")
	}
	assert.Len(t, embedder.Texts(), 4)
}

func TestPipeline_FlushCount(t *testing.T) {
	cases := []struct {
		chunks, batch, flushes int
		lastFlush              int
	}{
		{chunks: 10, batch: 4, flushes: 3, lastFlush: 2},
		{chunks: 8, batch: 4, flushes: 2, lastFlush: 4},
		{chunks: 1, batch: 64, flushes: 1, lastFlush: 1},
		{chunks: 0, batch: 4, flushes: 0},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d/%d", tc.chunks, tc.batch), func(t *testing.T) {
			index, _ := newTestIndex(t)
			pipeline, err := NewPipeline(index, mock.NewMockEmbedder(), WithBatchSize(tc.batch), WithChunkSize(10))
			require.NoError(t, err)

			records := make([]*core.SourceRecord, tc.chunks)
			for i := range records {
				records[i] = record(fmt.Sprintf("r%d", i), "ten chars!")
			}
			stats, err := pipeline.Ingest(context.Background(), "flush", stream(records...))
			require.NoError(t, err)

			assert.Equal(t, tc.flushes, stats.Flushes)
			require.Len(t, index.calls, tc.flushes)
			if tc.flushes > 0 {
				assert.Len(t, index.calls[tc.flushes-1], tc.lastFlush)
			}
		})
	}
}

func TestPipeline_FlushLogReportsBatchFill(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	index, _ := newTestIndex(t)
	pipeline, err := NewPipeline(index, mock.NewMockEmbedder(),
		WithBatchSize(3), WithChunkSize(10), WithLogger(logger))
	require.NoError(t, err)

	_, err = pipeline.Ingest(context.Background(), "raw/irs.ndjson",
		stream(record("r1", "ten chars!"), record("r2", "ten chars!"), record("r3", "ten chars!"), record("r4", "ten chars!")))
	require.NoError(t, err)

	var flushes []string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, `msg="flushing batch"`) {
			flushes = append(flushes, line)
		}
	}
	require.Len(t, flushes, 2)
	assert.Contains(t, flushes[0], "chunks=3 capacity=3")
	assert.Contains(t, flushes[1], "chunks=1 capacity=3")
	assert.Contains(t, flushes[1], "object=raw/irs.ndjson")
}

func TestPipeline_MetadataDefaults(t *testing.T) {
	index, stored := newTestIndex(t)
	pipeline, err := NewPipeline(index, mock.NewMockEmbedder())
	require.NoError(t, err)

	year := 0
	full := &core.SourceRecord{
		ID:        "full",
		Text:      strPtr("Roth IRA contribution limits"),
		Title:     strPtr("Retirement"),
		SourceURL: strPtr("https://www.irs.gov/retirement-plans"),
		DocType:   strPtr("guide"),
		Authority: strPtr("IRS"),
		Year:      &year,
	}
	bare := &core.SourceRecord{ID: "bare", Text: strPtr("Form 1099"), Title: strPtr("")}

	_, err = pipeline.Ingest(context.Background(), "meta", stream(full, bare))
	require.NoError(t, err)

	ctx := context.Background()
	entry, err := stored.Get(ctx, "full_chunk0")
	require.NoError(t, err)
	assert.Equal(t, core.Metadata{
		Title: "Retirement", SourceURL: "https://www.irs.gov/retirement-plans",
		DocType: "guide", Authority: "IRS", Year: 0,
	}, entry.Metadata)

	entry, err = stored.Get(ctx, "bare_chunk0")
	require.NoError(t, err)
	assert.Equal(t, core.Metadata{
		Title: "N/A", SourceURL: "N/A", DocType: "N/A", Authority: "N/A", Year: -1,
	}, entry.Metadata)
}

func TestPipeline_StreamErrorDropsRemainder(t *testing.T) {
	index, stored := newTestIndex(t)
	pipeline, err := NewPipeline(index, mock.NewMockEmbedder(), WithBatchSize(2), WithChunkSize(100))
	require.NoError(t, err)

	decodeErr := fmt.Errorf("%w: bad line", source.ErrDecode)
	stats, err := pipeline.Ingest(context.Background(), "broken",
		failingStream(decodeErr, record("a", "one"), record("b", "two"), record("c", "three")))
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrDecode)
	assert.Equal(t, 1, stats.Flushes)

	count, err := stored.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count, "the first full batch stays committed, the remainder is dropped")
}

func TestPipeline_InvalidRecordAborts(t *testing.T) {
	index, _ := newTestIndex(t)
	pipeline, err := NewPipeline(index, mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = pipeline.Ingest(context.Background(), "invalid", stream(record("", "text without id")))
	assert.ErrorIs(t, err, core.ErrMissingRecordID)
	assert.Empty(t, index.calls)
}

func TestPipeline_RecordWithoutIDOrTextIsSkipped(t *testing.T) {
	index, _ := newTestIndex(t)
	pipeline, err := NewPipeline(index, mock.NewMockEmbedder())
	require.NoError(t, err)

	stats, err := pipeline.Ingest(context.Background(), "empty", stream(record("", "")))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedRecords)
}

func TestPipeline_EmbeddingMismatch(t *testing.T) {
	index, _ := newTestIndex(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, mode ai.Mode, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}
	pipeline, err := NewPipeline(index, embedder)
	require.NoError(t, err)

	_, err = pipeline.Ingest(context.Background(), "mismatch", stream(record("a", "x"), record("b", "y")))
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
	assert.Empty(t, index.calls)
}

func TestPipeline_UsesPassageMode(t *testing.T) {
	index, _ := newTestIndex(t)
	embedder := mock.NewMockEmbedder()
	var modes []ai.Mode
	embedder.EmbedTextsFunc = func(ctx context.Context, mode ai.Mode, texts []string) ([][]float32, error) {
		modes = append(modes, mode)
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text)
		}
		return out, nil
	}
	pipeline, err := NewPipeline(index, embedder)
	require.NoError(t, err)

	_, err = pipeline.Ingest(context.Background(), "mode", stream(record("a", "x")))
	require.NoError(t, err)
	assert.Equal(t, []ai.Mode{ai.ModePassage}, modes)
}

func TestPipeline_RetryRecoversTransientFailure(t *testing.T) {
	index, _ := newTestIndex(t)
	embedder := mock.NewMockEmbedder()
	failures := 1
	embedder.EmbedTextsFunc = func(ctx context.Context, mode ai.Mode, texts []string) ([][]float32, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("connection reset")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text)
		}
		return out, nil
	}

	pipeline, err := NewPipeline(index, embedder, WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	stats, err := pipeline.Ingest(context.Background(), "retry", stream(record("a", "x")))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Flushes)
	assert.Equal(t, 1, stats.Retries)
	assert.Len(t, index.calls, 1)
}

func TestPipeline_NoRetryByDefault(t *testing.T) {
	index, _ := newTestIndex(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, mode ai.Mode, texts []string) ([][]float32, error) {
		return nil, errors.New("unavailable")
	}
	pipeline, err := NewPipeline(index, embedder)
	require.NoError(t, err)

	_, err = pipeline.Ingest(context.Background(), "noretry", stream(record("a", "x")))
	require.Error(t, err)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestPipeline_DimensionMismatchIsNotRetried(t *testing.T) {
	index, _ := newTestIndex(t)
	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, mode ai.Mode, texts []string) ([][]float32, error) {
		calls++
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = make([]float32, calls+1)
			out[i][0] = 1
		}
		return out, nil
	}
	pipeline, err := NewPipeline(index, embedder, WithBatchSize(1), WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	_, err = pipeline.Ingest(context.Background(), "dims", stream(record("a", "x"), record("b", "y")))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	assert.Equal(t, 2, calls)
}

func TestPipeline_IngestObjects(t *testing.T) {
	store := memory.New()
	store.PutBytes("raw/irs.ndjson", []byte(
		`{"id":"irs1","text":"Standard deduction amounts","authority":"IRS","year":2024}`+"\n"+
			`{"id":"irs2"}`+"\n"))
	store.PutBytes("raw/sec.ndjson", []byte(`{"id":"sec1","text":"Form 10-K filing"}`+"\n"))
	store.PutBytes("raw/notes.txt", []byte("ignored"))

	reader, err := source.NewReader(store)
	require.NoError(t, err)

	index, stored := newTestIndex(t)
	var progress bytes.Buffer
	pipeline, err := NewPipeline(index, mock.NewMockEmbedder(), WithProgress(&progress))
	require.NoError(t, err)

	stats, err := pipeline.IngestObjects(context.Background(), reader, "raw/", "")
	require.NoError(t, err)
	assert.Equal(t, Stats{Objects: 2, Records: 3, SkippedRecords: 1, Chunks: 2, Flushes: 2}, stats)
	assert.Contains(t, progress.String(), "[1/2] raw/irs.ndjson: 2 records (1 skipped), 1 chunks, 1 flushes")
	assert.Contains(t, progress.String(), "[2/2] raw/sec.ndjson: 1 records (0 skipped), 1 chunks, 1 flushes")
	assert.Contains(t, progress.String(), "Ingested 2/2 objects: 3 records (1 skipped), 2 chunks in 2 flushes")

	entry, err := stored.Get(context.Background(), "irs1_chunk0")
	require.NoError(t, err)
	assert.Equal(t, "IRS", entry.Metadata.Authority)
	assert.Equal(t, 2024, entry.Metadata.Year)

	filtered, err := pipeline.IngestObjects(context.Background(), reader, "raw/", "sec")
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Objects)
}

func TestPipeline_IngestObjectsStopsOnDecodeError(t *testing.T) {
	store := memory.New()
	store.PutBytes("a.ndjson", []byte("{broken\n"))
	store.PutBytes("b.ndjson", []byte(`{"id":"b","text":"never read"}`+"\n"))

	reader, err := source.NewReader(store)
	require.NoError(t, err)
	index, _ := newTestIndex(t)
	pipeline, err := NewPipeline(index, mock.NewMockEmbedder())
	require.NoError(t, err)

	stats, err := pipeline.IngestObjects(context.Background(), reader, "", "")
	assert.ErrorIs(t, err, source.ErrDecode)
	assert.Equal(t, 1, stats.Objects)
	assert.Zero(t, store.Opens("b.ndjson"))
}

func TestPipeline_IngestObjectsRequiresReader(t *testing.T) {
	index, _ := newTestIndex(t)
	pipeline, err := NewPipeline(index, mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = pipeline.IngestObjects(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, ErrReaderRequired)
}
