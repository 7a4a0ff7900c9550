package ai

import "context"

// Mode selects the embedding space a text is encoded into.
type Mode string

const (
	// ModePassage encodes documents stored in the index.
	ModePassage Mode = "passage"
	// ModeQuery encodes user queries searched against the index.
	ModeQuery Mode = "query"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePassage || m == ModeQuery
}

type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, mode Mode, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice has the same length and order as the input texts.
	// Implementations may split the batch internally; that never changes the
	// output order.
	EmbedTexts(ctx context.Context, mode Mode, texts []string) ([][]float32, error)
}

type Generator interface {
	// Generate returns the model's completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
