package models

import "encoding/json"

// Document types stored in the records table. Legacy rows written before the
// type discriminator existed carry an empty document_type and are treated as
// CSV data on the read path.
const (
	DocTypeCSV    = "csvData"
	DocTypePolicy = "policyDocument"
)

// Record is the stored unit of content: one CSV row or one policy document.
// Embedding stays nil when the embedding call fails; such records are stored
// but excluded from retrieval.
type Record struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	DocumentType string    `json:"documentType,omitempty"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	SourceFile   string    `json:"sourceFile,omitempty"`
	FileName     string    `json:"fileName,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	UploadedAt   string    `json:"uploadedAt,omitempty"`
	Version      string    `json:"version,omitempty"`
}

const (
	IngestActionUpsert = "upsert"
	IngestActionDelete = "delete"
)

// IngestMessage is the queued mutation instruction accepted by /api/ingest
// and applied asynchronously by the worker.
type IngestMessage struct {
	ID      string          `json:"id,omitempty"`
	Action  string          `json:"action"`
	Version string          `json:"version,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ResolveID returns the record id carried by the message, looking in the
// envelope first and then inside data.
func (m IngestMessage) ResolveID() string {
	if m.ID != "" {
		return m.ID
	}
	var d struct {
		ID string `json:"id"`
	}
	if len(m.Data) > 0 {
		_ = json.Unmarshal(m.Data, &d)
	}
	return d.ID
}

// ChatMessage is one role-tagged turn passed to the completion provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CSVFile struct {
	Name string `json:"name"`
}

type PolicyFile struct {
	Name       string `json:"name"`
	UploadedAt string `json:"uploadedAt,omitempty"`
}
