package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// MockProvider produces deterministic vectors and canned answers for tests
// and offline development.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	_ = ctx
	return deterministicVector(text, m.dim), nil
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	_ = ctx
	for _, msg := range req.Messages {
		if msg.Role == "system" && strings.Contains(strings.ToLower(msg.Content), "cite") {
			return "Mock grounded answer. [Source: mock.txt]", nil
		}
	}
	return "Mock response.", nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return vec
}
