package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mltutor/mltutor/internal/embedding"
)

// Index is the write side of the embedding index as the ingestor
// needs it.
type Index interface {
	Add(ctx context.Context, chunks []Chunk) error
}

// Ingestor runs the full pipeline for one material: chunk, embed,
// index. Concurrent ingestion of the same material is serialized;
// different materials proceed in parallel.
type Ingestor struct {
	chunker  Chunker
	embedder embedding.Embedder
	index    Index
	log      *slog.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	chapters map[string][]Chapter
}

func NewIngestor(embedder embedding.Embedder, index Index, log *slog.Logger) *Ingestor {
	return &Ingestor{
		embedder: embedder,
		index:    index,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
		chapters: make(map[string][]Chapter),
	}
}

// Ingest chunks and indexes the given pages under materialID,
// returning the number of chunks written. Chunk ids are derived from
// content, so re-ingesting an unchanged document replaces rather than
// duplicates.
func (ing *Ingestor) Ingest(ctx context.Context, materialID string, pages []Page) (int, error) {
	lock := ing.materialLock(materialID)
	lock.Lock()
	defer lock.Unlock()

	chunks, chapters, err := ing.chunker.Chunk(materialID, pages)
	if err != nil {
		return 0, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ing.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	if err := ing.index.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index material %s: %w", materialID, err)
	}

	ing.mu.Lock()
	ing.chapters[materialID] = chapters
	ing.mu.Unlock()

	ing.log.Info("material ingested",
		slog.String("material_id", materialID),
		slog.Int("pages", len(pages)),
		slog.Int("chunks", len(chunks)),
		slog.Int("chapters", len(chapters)))
	return len(chunks), nil
}

// Chapters returns the chapters detected during the last ingestion of
// the material, in document order.
func (ing *Ingestor) Chapters(materialID string) []Chapter {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	out := make([]Chapter, len(ing.chapters[materialID]))
	copy(out, ing.chapters[materialID])
	return out
}

func (ing *Ingestor) materialLock(materialID string) *sync.Mutex {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	l, ok := ing.locks[materialID]
	if !ok {
		l = &sync.Mutex{}
		ing.locks[materialID] = l
	}
	return l
}
