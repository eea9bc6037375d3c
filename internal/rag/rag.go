// Package rag answers questions from the stored corpus.
//
// Retrieval is a full scan of every embedded record: there is no similarity
// ranking or top-k cut, so the context block grows linearly with the corpus
// and will eventually exceed the completion provider's input limit.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"policychat/internal/models"
	"policychat/internal/providers"
)

// ErrEmptyCorpus signals that nothing has been ingested with an embedding
// yet. Handlers map it to a client error; no completion call is made.
var ErrEmptyCorpus = errors.New("no documents with embeddings found. Please ingest documents first")

const systemPrompt = "You are a RAG assistant. Always cite sources by their filename when referencing information."

type Store interface {
	ListEmbedded(ctx context.Context) ([]models.Record, error)
}

type Service struct {
	store     Store
	embedder  providers.EmbeddingProvider
	completer providers.CompletionProvider
}

func NewService(store Store, embedder providers.EmbeddingProvider, completer providers.CompletionProvider) *Service {
	return &Service{store: store, embedder: embedder, completer: completer}
}

// Answer embeds the question, retrieves all embedded records and asks the
// completion provider to answer strictly from that context. The retrieved
// records are returned for client-side citation display.
func (s *Service) Answer(ctx context.Context, question string) (string, []models.Record, error) {
	// The vector is not used for ranking; the call mirrors ingestion so the
	// question shares the corpus embedding space.
	if _, err := s.embedder.Embed(ctx, question); err != nil {
		return "", nil, fmt.Errorf("embed question: %w", err)
	}

	records, err := s.store.ListEmbedded(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("query records: %w", err)
	}
	if len(records) == 0 {
		return "", nil, ErrEmptyCorpus
	}

	answer, err := s.completer.Complete(ctx, providers.CompletionRequest{
		Messages: []models.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(question, BuildContext(records))},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate answer: %w", err)
	}
	return answer, records, nil
}

// BuildContext renders the grounding block: a [Source: ...] header per
// record, records separated by blank lines.
func BuildContext(records []models.Record) string {
	parts := make([]string, 0, len(records))
	for _, rec := range records {
		source := rec.SourceFile
		if source == "" {
			source = rec.Title
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", source, rec.Content))
	}
	return strings.Join(parts, "\n\n")
}

func userPrompt(question, context string) string {
	return fmt.Sprintf("Question: %s\n\nContext:\n%s\n\nAnswer using ONLY the context above. When citing sources, use the [Source: filename] format shown in the context.", question, context)
}
