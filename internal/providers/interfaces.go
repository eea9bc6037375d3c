package providers

import (
	"context"

	"policychat/internal/config"
	"policychat/internal/models"
)

type CompletionRequest struct {
	Messages    []models.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

// CompletionProvider returns generated text for a list of role-tagged
// messages. No streaming, no retry; callers surface a single failure.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// EmbeddingProvider converts text into a fixed-length vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New builds the configured providers. Without an API key both fall back to
// the deterministic mock so local development works offline.
func New(cfg config.Config) (CompletionProvider, EmbeddingProvider) {
	if cfg.OpenAIAPIKey == "" {
		m := NewMockProvider(cfg.EmbedDim)
		return m, m
	}
	p := NewOpenAIProvider(cfg)
	return p, p
}
