package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/ai/mock"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *badger.Index {
	t.Helper()
	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})
	return index
}

func entry(id, doc string, vector ...float32) *core.IndexEntry {
	return &core.IndexEntry{
		ID:       id,
		Vector:   vector,
		Document: doc,
		Metadata: core.Metadata{Title: "Unknown", SourceURL: "N/A", DocType: "N/A", Authority: "N/A"},
	}
}

// fixedEmbedder returns the same query vector for every text.
func fixedEmbedder(vector ...float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(_ context.Context, mode ai.Mode, _ string) ([]float32, error) {
		if mode != ai.ModeQuery {
			return nil, ai.ErrInvalidMode
		}
		return vector, nil
	}
	return embedder
}

func seeded(t *testing.T) *badger.Index {
	t.Helper()
	index := newTestIndex(t)
	require.NoError(t, index.Add(context.Background(),
		entry("a", "alpha", 1, 0, 0),
		entry("b", "beta", 0.8, 0.6, 0),
		entry("c", "gamma", 0, 0, 1),
	))
	return index
}

func TestNewService_Validation(t *testing.T) {
	index := newTestIndex(t)

	_, err := NewService(nil, func(context.Context) (ai.Embedder, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewService(index, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewServiceWithEmbedder(index, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewServiceWithEmbedder(index, mock.NewMockEmbedder(), WithDefaultTopK(0))
	assert.Error(t, err)
}

func TestRetrieve_EmptyIndexReturnsNoContext(t *testing.T) {
	svc, err := NewServiceWithEmbedder(newTestIndex(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	got, err := svc.Retrieve(context.Background(), "what is a roth ira", 5)
	require.NoError(t, err)
	assert.Equal(t, NoContext, got)
}

func TestRetrieve_JoinsRankedDocuments(t *testing.T) {
	svc, err := NewServiceWithEmbedder(seeded(t), fixedEmbedder(1, 0, 0))
	require.NoError(t, err)

	got, err := svc.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta", got)

	got, err = svc.Retrieve(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta\ngamma", got)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	index := newTestIndex(t)
	entries := make([]*core.IndexEntry, 0, 8)
	for i := range 8 {
		entries = append(entries, entry(string(rune('a'+i)), string(rune('A'+i)), 1, float32(i), 0))
	}
	require.NoError(t, index.Add(context.Background(), entries...))

	svc, err := NewServiceWithEmbedder(index, fixedEmbedder(1, 0, 0))
	require.NoError(t, err)
	results, err := svc.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)

	svc, err = NewServiceWithEmbedder(index, fixedEmbedder(1, 0, 0), WithDefaultTopK(2))
	require.NoError(t, err)
	results, err = svc.Search(context.Background(), "q", -1)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieve_BlankQueryOnEmptyIndex(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	svc, err := NewServiceWithEmbedder(newTestIndex(t), embedder)
	require.NoError(t, err)

	for _, query := range []string{"", "   "} {
		got, err := svc.Retrieve(context.Background(), query, 5)
		require.NoError(t, err)
		assert.Equal(t, NoContext, got)
	}
	assert.Equal(t, []string{"", "   "}, embedder.Texts(), "blank queries are still embedded")
}

func TestRetrieve_BlankQueryReturnsNearest(t *testing.T) {
	index := newTestIndex(t)
	require.NoError(t, index.Add(context.Background(),
		entry("a", "first", 1, 0, 0),
		entry("b", "second", 0, 1, 0),
	))

	svc, err := NewServiceWithEmbedder(index, fixedEmbedder(1, 0, 0))
	require.NoError(t, err)

	got, err := svc.Retrieve(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", got)
}

func TestRetrieve_UsesQueryMode(t *testing.T) {
	var modes []ai.Mode
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(_ context.Context, mode ai.Mode, text string) ([]float32, error) {
		modes = append(modes, mode)
		return mock.Vector(text), nil
	}
	svc, err := NewServiceWithEmbedder(newTestIndex(t), embedder)
	require.NoError(t, err)

	_, err = svc.Retrieve(context.Background(), "hello", 1)
	require.NoError(t, err)
	assert.Equal(t, []ai.Mode{ai.ModeQuery}, modes)
	assert.Equal(t, []string{"hello"}, embedder.Texts())
}

func TestRetrieve_LoadsEmbedderOnce(t *testing.T) {
	var mu sync.Mutex
	loads := 0
	embedder := mock.NewMockEmbedder()
	svc, err := NewService(newTestIndex(t), func(context.Context) (ai.Embedder, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		return embedder, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, loads, "loader must not run at construction")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Retrieve(context.Background(), "q", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, loads)
	assert.Equal(t, 8, embedder.CallCount())
}

func TestRetrieve_RetriesFailedLoad(t *testing.T) {
	loads := 0
	svc, err := NewService(newTestIndex(t), func(context.Context) (ai.Embedder, error) {
		loads++
		if loads == 1 {
			return nil, errors.New("backend unreachable")
		}
		return mock.NewMockEmbedder(), nil
	})
	require.NoError(t, err)

	_, err = svc.Retrieve(context.Background(), "q", 3)
	require.Error(t, err)

	got, err := svc.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, NoContext, got)
	assert.Equal(t, 2, loads)
}

func TestRetrieve_EmbeddingError(t *testing.T) {
	boom := errors.New("boom")
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(context.Context, ai.Mode, string) ([]float32, error) {
		return nil, boom
	}
	svc, err := NewServiceWithEmbedder(seeded(t), embedder)
	require.NoError(t, err)

	_, err = svc.Retrieve(context.Background(), "q", 3)
	assert.ErrorIs(t, err, boom)
}

type recordingMonitor struct {
	steps  []string
	topK   int
	hits   int
	result string
}

func (m *recordingMonitor) Start(_ string, topK int) {
	m.steps = append(m.steps, "start")
	m.topK = topK
}

func (m *recordingMonitor) AfterEmbedding(_ []float32) { m.steps = append(m.steps, "embedding") }

func (m *recordingMonitor) AfterQuery(results []*core.SearchResult) {
	m.steps = append(m.steps, "query")
	m.hits = len(results)
}

func (m *recordingMonitor) Finish(result string) {
	m.steps = append(m.steps, "finish")
	m.result = result
}

func TestRetrieveWithMonitor(t *testing.T) {
	svc, err := NewServiceWithEmbedder(seeded(t), fixedEmbedder(0, 0, 1))
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	got, err := svc.RetrieveWithMonitor(context.Background(), "q", 1, monitor)
	require.NoError(t, err)

	assert.Equal(t, "gamma", got)
	assert.Equal(t, []string{"start", "embedding", "query", "finish"}, monitor.steps)
	assert.Equal(t, 1, monitor.topK)
	assert.Equal(t, 1, monitor.hits)
	assert.Equal(t, "gamma", monitor.result)
}
