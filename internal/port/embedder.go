package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for the given texts in one
	// provider call. Output order matches input order; a provider
	// failure fails the whole batch, never a partial result.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// Message is one turn of a conversation passed to a Generator.
type Message struct {
	Role    string
	Content string
}

// Generator produces a reply from a conversation plus retrieved
// context snippets.
type Generator interface {
	Generate(ctx context.Context, messages []Message, contextSnippets []string) (string, error)
}
