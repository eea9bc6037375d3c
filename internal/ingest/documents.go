package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"policychat/internal/extract"
	"policychat/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// File is one uploaded document held in memory. Uploads are capped well
// below anything worth streaming.
type File struct {
	Name string
	Data []byte
}

// IngestDocuments extracts text from each file and stores one record per
// document. All prior policy records for the owner are deleted first.
// Unsupported extensions and files with no extractable text are per-file
// failures; the batch continues.
func (p *Pipeline) IngestDocuments(ctx context.Context, files []File, ownerID string) Result {
	n, err := p.store.DeleteByOwnerAndType(ctx, ownerID, models.DocTypePolicy)
	if err != nil {
		log.Warn().Err(err).Str("owner", ownerID).Msg("failed to delete existing policy records")
	} else if n > 0 {
		log.Info().Int64("deleted", n).Str("owner", ownerID).Msg("cleared existing policy records")
	}

	res := Result{IDs: make([]string, 0, len(files))}
	for _, f := range files {
		content, err := extract.Text(f.Name, f.Data)
		if err != nil {
			if errors.Is(err, extract.ErrUnsupportedType) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: Unsupported file type. Use PDF, DOCX, DOC, or TXT.", f.Name))
			} else {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			}
			continue
		}
		if strings.TrimSpace(content) == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: No text content found.", f.Name))
			continue
		}

		docID := uuid.NewString()
		rec := models.Record{
			ID:           docID,
			OwnerID:      ownerID,
			DocumentType: models.DocTypePolicy,
			Title:        strings.TrimSuffix(f.Name, filepath.Ext(f.Name)),
			Content:      content,
			FileName:     f.Name,
			UploadedAt:   p.now().UTC().Format(time.RFC3339),
			Version:      "v1",
		}
		if err := p.store.UpsertRecord(ctx, rec); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}

		// Embedding failure is not a file failure here: the record stays
		// stored without a vector and drops out of retrieval.
		if err := p.embedAndAttach(ctx, ownerID, docID, truncate(content, embedTruncateChars)); err != nil {
			log.Warn().Err(err).Str("file", f.Name).Msg("embedding failed for policy document")
		}

		res.IDs = append(res.IDs, docID)
		log.Info().Str("file", f.Name).Str("id", docID).Msg("processed policy document")
	}

	res.Processed = len(res.IDs)
	res.Failed = len(res.Errors)
	return res
}
