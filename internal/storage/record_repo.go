package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"policychat/internal/models"
)

// ErrRecordNotFound is returned when a delete targets a record that does not
// exist. Best-effort callers swallow it; the queued delete path surfaces it.
var ErrRecordNotFound = errors.New("record not found")

// RecordRepo is the document store client. Records are keyed by
// (owner_id, id); owner_id is the partition key.
type RecordRepo struct {
	db *DB
}

func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) UpsertRecord(ctx context.Context, rec models.Record) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO records (id, owner_id, document_type, title, content, source_file, file_name, embedding, uploaded_at, version)
VALUES ($1, $2, NULLIF($3,''), $4, $5, NULLIF($6,''), NULLIF($7,''),
        $8::vector, NULLIF($9,''), $10)
ON CONFLICT (owner_id, id)
DO UPDATE SET
  document_type = EXCLUDED.document_type,
  title = EXCLUDED.title,
  content = EXCLUDED.content,
  source_file = EXCLUDED.source_file,
  file_name = EXCLUDED.file_name,
  embedding = COALESCE(EXCLUDED.embedding, records.embedding),
  uploaded_at = EXCLUDED.uploaded_at,
  version = EXCLUDED.version,
  updated_at = NOW()`,
		rec.ID, rec.OwnerID, rec.DocumentType, rec.Title, rec.Content,
		rec.SourceFile, rec.FileName, vectorLiteral(rec.Embedding), rec.UploadedAt, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// AttachEmbedding is the best-effort second write that adds the vector to an
// already stored record.
func (r *RecordRepo) AttachEmbedding(ctx context.Context, ownerID, id string, vec []float32) error {
	lit := vectorLiteral(vec)
	if lit == nil {
		return fmt.Errorf("attach embedding %s: empty vector", id)
	}
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE records SET embedding=$3::vector, updated_at=NOW() WHERE owner_id=$1 AND id=$2`,
		ownerID, id, *lit)
	if err != nil {
		return fmt.Errorf("attach embedding %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *RecordRepo) DeleteRecord(ctx context.Context, ownerID, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM records WHERE owner_id=$1 AND id=$2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteRecordByID serves the queued delete path, where the message carries
// only an id and the partition key is taken to equal it.
func (r *RecordRepo) DeleteRecordByID(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM records WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete record by id %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteByOwnerAndType clears all records of one document type for an owner.
// Ingestion calls this before writing a new batch (replace-not-merge).
func (r *RecordRepo) DeleteByOwnerAndType(ctx context.Context, ownerID, docType string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM records WHERE owner_id=$1 AND document_type=$2`, ownerID, docType)
	if err != nil {
		return 0, fmt.Errorf("delete records for owner %s type %s: %w", ownerID, docType, err)
	}
	return tag.RowsAffected(), nil
}

// ListEmbedded returns every record across all owners that has an embedding.
// The vector itself is not loaded; callers only need the textual payload.
func (r *RecordRepo) ListEmbedded(ctx context.Context) ([]models.Record, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, owner_id, COALESCE(document_type,''), title, content,
       COALESCE(source_file,''), COALESCE(file_name,''), COALESCE(uploaded_at,''), version
FROM records
WHERE embedding IS NOT NULL
ORDER BY owner_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list embedded records: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.DocumentType, &rec.Title, &rec.Content,
			&rec.SourceFile, &rec.FileName, &rec.UploadedAt, &rec.Version); err != nil {
			return nil, fmt.Errorf("scan embedded record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedded records: %w", err)
	}
	return out, nil
}

// ListCSVSources returns distinct CSV source filenames. Legacy rows without
// a document_type are counted as CSV data.
func (r *RecordRepo) ListCSVSources(ctx context.Context) ([]models.CSVFile, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT DISTINCT source_file
FROM records
WHERE (document_type=$1 OR document_type IS NULL)
  AND source_file IS NOT NULL
ORDER BY source_file`, models.DocTypeCSV)
	if err != nil {
		return nil, fmt.Errorf("list csv sources: %w", err)
	}
	defer rows.Close()

	out := make([]models.CSVFile, 0)
	for rows.Next() {
		var f models.CSVFile
		if err := rows.Scan(&f.Name); err != nil {
			return nil, fmt.Errorf("scan csv source: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate csv sources: %w", err)
	}
	return out, nil
}

func (r *RecordRepo) ListPolicyFiles(ctx context.Context) ([]models.PolicyFile, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT DISTINCT file_name, COALESCE(uploaded_at,'')
FROM records
WHERE document_type=$1 AND file_name IS NOT NULL
ORDER BY file_name`, models.DocTypePolicy)
	if err != nil {
		return nil, fmt.Errorf("list policy files: %w", err)
	}
	defer rows.Close()

	out := make([]models.PolicyFile, 0)
	for rows.Next() {
		var f models.PolicyFile
		if err := rows.Scan(&f.Name, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan policy file: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy files: %w", err)
	}
	return out, nil
}

// vectorLiteral renders a pgvector text literal, nil when no embedding is
// present so the SQL cast keeps the column NULL.
func vectorLiteral(v []float32) *string {
	if len(v) == 0 {
		return nil
	}
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	s := "[" + strings.Join(parts, ",") + "]"
	return &s
}
