// Package embedding adapts OpenAI-compatible APIs to the Embedder and
// Generator ports.
package embedding

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"vaultindex/internal/adapter/markdown"
	"vaultindex/internal/port"
)

// maxInputRunes caps text sent to the embeddings endpoint. Longer
// input is truncated, not rejected.
const maxInputRunes = 10000

// OpenAIProvider implements port.Embedder and port.Generator against
// an OpenAI-compatible API.
type OpenAIProvider struct {
	client      *openai.Client
	embedModel  string
	chatModel   string
	dimension   int
	temperature float32
}

// NewOpenAIProvider reads the API key from the named environment
// variable. baseURL may be empty for api.openai.com, or point at any
// OpenAI-compatible server (e.g. a local Ollama).
func NewOpenAIProvider(apiKeyEnv, baseURL, embedModel, chatModel string, dimension int, temperature float32) (*OpenAIProvider, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable %s", apiKeyEnv)
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(cfg),
		embedModel:  embedModel,
		chatModel:   chatModel,
		dimension:   dimension,
		temperature: temperature,
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one API call. The response preserves
// input order via the index field; any API error fails the whole batch.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = markdown.Truncate(text, maxInputRunes)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(p.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vecs[data.Index] = data.Embedding
	}
	return vecs, nil
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) ModelName() string {
	return p.embedModel
}

// Generate sends the conversation with retrieved snippets folded into
// the system prompt and returns the reply text.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []port.Message, contextSnippets []string) (string, error) {
	system := "You are a helpful assistant answering questions about the user's notes.\n"
	if len(contextSnippets) > 0 {
		system += "Use the following notes as context:\n\n"
		for _, snippet := range contextSnippets {
			system += snippet + "\n---\n"
		}
	}

	chat := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chat = append(chat, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range messages {
		chat = append(chat, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.chatModel,
		Messages:    chat,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
