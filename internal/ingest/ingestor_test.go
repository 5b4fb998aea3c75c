package ingest_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/mltutor/mltutor/internal/embedding"
	"github.com/mltutor/mltutor/internal/ingest"
)

type captureIndex struct {
	mu     sync.Mutex
	chunks map[string]ingest.Chunk
	adds   int
}

func newCaptureIndex() *captureIndex {
	return &captureIndex{chunks: make(map[string]ingest.Chunk)}
}

func (ci *captureIndex) Add(_ context.Context, chunks []ingest.Chunk) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.adds++
	for _, c := range chunks {
		ci.chunks[c.ID] = c
	}
	return nil
}

func (ci *captureIndex) size() int {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return len(ci.chunks)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestIngestor_EmbedsEveryChunk(t *testing.T) {
	idx := newCaptureIndex()
	ing := ingest.NewIngestor(embedding.NewMockEmbedder(16), idx, discardLogger())

	n, err := ing.Ingest(context.Background(), "ml-basics", []ingest.Page{loremPage(1, 40)})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if n == 0 || n != idx.size() {
		t.Fatalf("Ingest() reported %d chunks, index holds %d", n, idx.size())
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, c := range idx.chunks {
		if len(c.Vector) != 16 {
			t.Errorf("chunk %s vector length = %d, want 16", id, len(c.Vector))
		}
	}
}

func TestIngestor_ReingestIsIdempotent(t *testing.T) {
	idx := newCaptureIndex()
	ing := ingest.NewIngestor(embedding.NewMockEmbedder(8), idx, discardLogger())
	pages := []ingest.Page{loremPage(1, 40)}

	first, err := ing.Ingest(context.Background(), "m", pages)
	if err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	second, err := ing.Ingest(context.Background(), "m", pages)
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if first != second {
		t.Errorf("chunk counts differ across re-ingestion: %d vs %d", first, second)
	}
	if idx.size() != first {
		t.Errorf("index holds %d chunks after re-ingestion, want %d", idx.size(), first)
	}
}

func TestIngestor_ChaptersRecorded(t *testing.T) {
	idx := newCaptureIndex()
	ing := ingest.NewIngestor(embedding.NewMockEmbedder(8), idx, discardLogger())

	page := ingest.Page{Number: 1, Text: "Chapter 1: Supervised Learning\n" + loremPage(1, 10).Text}
	if _, err := ing.Ingest(context.Background(), "m", []ingest.Page{page}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	chapters := ing.Chapters("m")
	if len(chapters) != 1 {
		t.Fatalf("Chapters() returned %d, want 1", len(chapters))
	}
	if chapters[0].Title != "Supervised Learning" {
		t.Errorf("chapter title = %q", chapters[0].Title)
	}
	if ing.Chapters("unknown") == nil {
		// Unknown materials yield an empty, non-nil slice.
		t.Error("Chapters(unknown) returned nil")
	}
}
