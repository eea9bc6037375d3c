// Package extract pulls plain text out of uploaded policy files.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// ErrUnsupportedType is returned for file extensions outside pdf/docx/doc/txt.
var ErrUnsupportedType = errors.New("unsupported file type. Use PDF, DOCX, DOC, or TXT")

// Text dispatches on the file extension and returns the extracted plain
// text. The caller decides whether whitespace-only output is a failure.
func Text(filename string, data []byte) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "pdf":
		return fromPDF(data)
	case "docx", "doc":
		return fromDOCX(data)
	case "txt":
		return Sanitize(string(data)), nil
	default:
		return "", ErrUnsupportedType
	}
}

func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return Sanitize(b.String()), nil
}

func fromDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	paragraphs := strings.Split(content, "</w:p>")
	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		line := collectRuns(p)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return Sanitize(strings.Join(lines, "\n")), nil
}

// collectRuns concatenates the <w:t> text runs of one paragraph's XML.
func collectRuns(paragraphXML string) string {
	var b strings.Builder
	rest := paragraphXML
	for {
		start := strings.Index(rest, "<w:t")
		if start < 0 {
			break
		}
		rest = rest[start+len("<w:t"):]
		// Other elements share the prefix (<w:tab/>, <w:tc>, <w:tbl>);
		// a text run continues with ">" or an attribute list.
		if rest == "" || (rest[0] != '>' && rest[0] != ' ') {
			continue
		}
		open := strings.Index(rest, ">")
		if open < 0 {
			break
		}
		rest = rest[open+1:]
		end := strings.Index(rest, "</w:t>")
		if end < 0 {
			break
		}
		b.WriteString(rest[:end])
		rest = rest[end:]
	}
	return strings.TrimSpace(b.String())
}
