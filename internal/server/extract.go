package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/mltutor/mltutor/internal/ingest"
)

// PageExtractor turns an uploaded document into ordered pages of
// plain text. PDF extraction plugs in here.
type PageExtractor interface {
	Extract(filename string, r io.Reader) ([]ingest.Page, error)
}

// PlainTextExtractor handles .txt and .md uploads. Form feeds mark
// page breaks; a file without them is a single page.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(filename string, r io.Reader) ([]ingest.Page, error) {
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, ".txt") && !strings.HasSuffix(lower, ".md") {
		return nil, fmt.Errorf("unsupported file type %q, expected .txt or .md", filename)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	parts := strings.Split(string(data), "\f")
	pages := make([]ingest.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, ingest.Page{Number: i + 1, Text: part})
	}
	return pages, nil
}
