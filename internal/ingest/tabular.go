package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"policychat/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// IngestTable parses a delimited or spreadsheet file into one record per
// row. When ownerID is set, all prior CSV records for that owner are
// deleted first (replace-not-merge). Rows without a resolvable owner are
// recorded as failures and skipped.
func (p *Pipeline) IngestTable(ctx context.Context, filename string, data []byte, ownerID string) (Result, error) {
	filename = strings.ToLower(filename)

	header, rows, err := parseTable(filename, data)
	if err != nil {
		return Result{}, err
	}

	if ownerID != "" {
		n, err := p.store.DeleteByOwnerAndType(ctx, ownerID, models.DocTypeCSV)
		if err != nil {
			log.Warn().Err(err).Str("owner", ownerID).Msg("failed to delete existing csv records")
		} else {
			log.Info().Int64("deleted", n).Str("owner", ownerID).Msg("cleared existing csv records")
		}
	}

	res := Result{IDs: make([]string, 0, len(rows))}
	for idx, row := range rows {
		cell := func(col string) string {
			for i, h := range header {
				if h == col && i < len(row) {
					return strings.TrimSpace(row[i])
				}
			}
			return ""
		}

		rowID := cell("id")
		if rowID == "" {
			rowID = uuid.NewString()
		}
		owner := cell("userId")
		if owner == "" {
			owner = ownerID
		}
		if owner == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: missing userId", idx))
			continue
		}
		title := cell("title")
		if title == "" {
			title = "Record " + rowID
		}
		content := cell("content")
		if content == "" {
			content = synthesizeContent(header, row)
		}

		rec := models.Record{
			ID:           rowID,
			OwnerID:      owner,
			DocumentType: models.DocTypeCSV,
			Title:        title,
			Content:      content,
			SourceFile:   filename,
			Version:      "v1",
		}
		if err := p.store.UpsertRecord(ctx, rec); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", idx, err))
			continue
		}

		if strings.TrimSpace(content) != "" {
			if err := p.embedAndAttach(ctx, owner, rowID, content); err != nil {
				log.Warn().Err(err).Int("row", idx).Str("id", rowID).Msg("embedding failed")
				res.Errors = append(res.Errors, fmt.Sprintf("Row %d: embedding failed - %v", idx, err))
			}
		}

		res.IDs = append(res.IDs, rowID)
	}

	res.Processed = len(res.IDs)
	res.Failed = len(res.Errors)
	return res, nil
}

// embedAndAttach requests a vector and writes it back, then pauses to space
// out sequential provider calls. Callers truncate the input where needed;
// CSV rows go through untruncated.
func (p *Pipeline) embedAndAttach(ctx context.Context, ownerID, id, content string) error {
	vec, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}
	if err := p.store.AttachEmbedding(ctx, ownerID, id, vec); err != nil {
		return err
	}
	if p.embedDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.embedDelay):
		}
	}
	return nil
}

// synthesizeContent builds "col: value" lines in column order, skipping the
// owner column and empty cells.
func synthesizeContent(header []string, row []string) string {
	lines := make([]string, 0, len(header))
	for i, h := range header {
		if h == "userId" || i >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}
		lines = append(lines, h+": "+v)
	}
	return strings.Join(lines, "\n")
}

func parseTable(filename string, data []byte) (header []string, rows [][]string, err error) {
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return parseCSV(data)
	case strings.HasSuffix(filename, ".xlsx"):
		return parseXLSX(data)
	default:
		return nil, nil, fmt.Errorf("only .csv and .xlsx files supported")
	}
}

func parseCSV(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("csv file is empty")
	}
	header := make([]string, len(all[0]))
	for i, h := range all[0] {
		header[i] = strings.TrimSpace(h)
	}
	return header, all[1:], nil
}

func parseXLSX(data []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parse xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("xlsx file has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("xlsx sheet is empty")
	}
	header := make([]string, len(all[0]))
	for i, h := range all[0] {
		header[i] = strings.TrimSpace(h)
	}
	return header, all[1:], nil
}
