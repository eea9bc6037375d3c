package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"policychat/internal/config"
)

// OpenAIProvider talks to an OpenAI-compatible REST surface. With an Azure
// endpoint configured the base URL already carries the /openai/v1 prefix and
// the model fields name deployments.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	client     *http.Client
}

func NewOpenAIProvider(cfg config.Config) *OpenAIProvider {
	base := cfg.OpenAIEndpoint
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		baseURL:    base,
		apiKey:     cfg.OpenAIAPIKey,
		chatModel:  cfg.ChatDeployment,
		embedModel: cfg.EmbeddingsDeployment,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := map[string]any{
		"model":    o.chatModel,
		"messages": req.Messages,
	}
	if req.MaxTokens > 0 {
		body["max_completion_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	raw, err := o.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	raw, err := o.post(ctx, "/embeddings", map[string]any{
		"model": o.embedModel,
		"input": text,
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return parsed.Data[0].Embedding, nil
}

func (o *OpenAIProvider) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("provider error %d on %s: %s", resp.StatusCode, path, string(raw))
	}
	return raw, nil
}
