// Package ingest turns raw document pages into bounded, embeddable
// chunks and drives them through the embedding index.
package ingest

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Page is one unit of extracted document text, in document order.
type Page struct {
	Number int
	Text   string
}

// PageRange marks the pages a chunk was cut from.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunk is an immutable segment of source text. Vector is empty until
// the chunk has passed through the embedder.
type Chunk struct {
	ID         string    `json:"id"`
	MaterialID string    `json:"material_id"`
	ChapterID  string    `json:"chapter_id,omitempty"`
	Pages      PageRange `json:"pages"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"-"`
}

// Chapter is a structural unit detected from heading patterns during
// ingestion.
type Chapter struct {
	ID         string `json:"id"`
	MaterialID string `json:"material_id"`
	Title      string `json:"title"`
	PageStart  int    `json:"page_start"`
	PageEnd    int    `json:"page_end"`
}

// ChunkID derives a stable identifier from the chunk's material and
// content. Re-ingesting the same document produces the same ids, which
// makes index writes idempotent.
func ChunkID(materialID string, page int, text string) string {
	sum := blake2b.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%s", materialID, page, text))
	return hex.EncodeToString(sum[:16])
}
