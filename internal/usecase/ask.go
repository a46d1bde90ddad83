package usecase

import (
	"context"
	"fmt"

	"vaultindex/internal/domain"
	"vaultindex/internal/port"
)

// Asker answers a question with the generation capability of the
// provider, grounded in the top-k retrieved notes.
type Asker struct {
	retriever *Retriever
	generator port.Generator
	topK      int
}

func NewAsker(retriever *Retriever, generator port.Generator, topK int) *Asker {
	if topK <= 0 {
		topK = 5
	}
	return &Asker{
		retriever: retriever,
		generator: generator,
		topK:      topK,
	}
}

// Ask retrieves context for the question and generates a reply.
// Returns the reply together with the snippets it was grounded on.
func (a *Asker) Ask(ctx context.Context, question string) (string, []domain.SearchResult, error) {
	results, err := a.retriever.Search(ctx, question, a.topK)
	if err != nil {
		return "", nil, err
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, fmt.Sprintf("%s (%s):\n%s", r.Entry.Title, r.Entry.ID, r.Entry.Content))
	}

	reply, err := a.generator.Generate(ctx, []port.Message{{Role: "user", Content: question}}, snippets)
	if err != nil {
		return "", nil, fmt.Errorf("generate reply: %w", err)
	}
	return reply, results, nil
}
