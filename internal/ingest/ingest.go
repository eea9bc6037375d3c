// Package ingest turns uploaded tabular and document files into stored
// records with best-effort embeddings.
package ingest

import (
	"context"
	"time"

	"policychat/internal/models"
	"policychat/internal/providers"
)

// Store is the slice of the document store the pipelines need.
type Store interface {
	UpsertRecord(ctx context.Context, rec models.Record) error
	AttachEmbedding(ctx context.Context, ownerID, id string, vec []float32) error
	DeleteByOwnerAndType(ctx context.Context, ownerID, docType string) (int64, error)
}

// Result reports a batch outcome. A batch never aborts on a single item:
// failures are collected and the remaining items continue.
type Result struct {
	Processed int
	Failed    int
	IDs       []string
	Errors    []string
}

// Policy document content is capped before embedding; longer inputs risk
// provider-side rejection.
const embedTruncateChars = 8000

// defaultEmbedDelay is the fixed pause between embedding calls. No backoff,
// no batching; it only spaces out sequential calls within one upload.
const defaultEmbedDelay = 100 * time.Millisecond

type Pipeline struct {
	store      Store
	embedder   providers.EmbeddingProvider
	embedDelay time.Duration
	now        func() time.Time
}

func NewPipeline(store Store, embedder providers.EmbeddingProvider) *Pipeline {
	return &Pipeline{
		store:      store,
		embedder:   embedder,
		embedDelay: defaultEmbedDelay,
		now:        time.Now,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
