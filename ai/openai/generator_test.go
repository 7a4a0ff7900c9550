package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/finwhiz/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "qwen2.5:3b",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "Margin is collateral."},
			}},
		})
	}))
	defer server.Close()

	generator, err := NewGenerator(ai.NewConfig(ai.WithHost(server.URL)))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "What is margin?")
	require.NoError(t, err)
	assert.Equal(t, "Margin is collateral.", answer)
}

func TestGenerator_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	generator, err := NewGenerator(ai.NewConfig(ai.WithHost(server.URL)))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := generator.Generate(ctx, "q")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrGeneratorUnavailable)
	}
	served := calls.Load()

	_, err = generator.Generate(ctx, "q")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
	assert.Equal(t, served, calls.Load(), "open breaker must not reach the server")
}
