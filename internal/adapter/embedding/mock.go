package embedding

import (
	"context"

	"vaultindex/internal/port"
)

// MockEmbedder produces deterministic vectors from the text's leading
// runes. For tests and offline smoke runs.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = make([]float32, e.dimension)
		for j, r := range text {
			if j >= e.dimension {
				break
			}
			vecs[i][j] = float32(r) / 1000.0
		}
	}
	return vecs, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}

func (e *MockEmbedder) Generate(ctx context.Context, messages []port.Message, contextSnippets []string) (string, error) {
	return "mock reply", nil
}
