package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/mltutor/mltutor/internal/ingest"
	"github.com/mltutor/mltutor/internal/platform/database"
)

const chunksSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	material_id TEXT NOT NULL,
	chapter_id  TEXT NOT NULL DEFAULT '',
	page_start  INT NOT NULL,
	page_end    INT NOT NULL,
	body        TEXT NOT NULL,
	vector      REAL[] NOT NULL
);
CREATE INDEX IF NOT EXISTS chunks_material_idx ON chunks (material_id, chapter_id);
`

// PostgresIndex persists chunks and vectors in a chunks table.
// Similarity is computed in process after a filtered load, which keeps
// the schema portable across vanilla Postgres installs.
type PostgresIndex struct {
	db *database.DB
}

func NewPostgresIndex(ctx context.Context, db *database.DB) (*PostgresIndex, error) {
	if _, err := db.Pool.Exec(ctx, chunksSchema); err != nil {
		return nil, fmt.Errorf("ensuring chunks schema: %w", err)
	}
	return &PostgresIndex{db: db}, nil
}

func (p *PostgresIndex) Add(ctx context.Context, chunks []ingest.Chunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, material_id, chapter_id, page_start, page_end, body, vector)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				material_id = EXCLUDED.material_id,
				chapter_id  = EXCLUDED.chapter_id,
				page_start  = EXCLUDED.page_start,
				page_end    = EXCLUDED.page_end,
				body        = EXCLUDED.body,
				vector      = EXCLUDED.vector`,
			c.ID, c.MaterialID, c.ChapterID, c.Pages.Start, c.Pages.End, c.Text, c.Vector)
	}
	br := p.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting chunk: %w", err)
		}
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	if k < 1 || !validQuery(vector) {
		return nil, ErrInvalidQuery
	}

	rows, err := p.db.Pool.Query(ctx, `
		SELECT id, material_id, chapter_id, page_start, page_end, body, vector
		FROM chunks
		WHERE ($1 = '' OR material_id = $1)
		  AND ($2 = '' OR chapter_id = $2)
		ORDER BY id`,
		filter.MaterialID, filter.ChapterID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var c ingest.Chunk
		if err := rows.Scan(&c.ID, &c.MaterialID, &c.ChapterID,
			&c.Pages.Start, &c.Pages.End, &c.Text, &c.Vector); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if len(c.Vector) != len(vector) {
			return nil, ErrInvalidQuery
		}
		hits = append(hits, Hit{Chunk: c, Score: cosine(vector, c.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	// Rows arrive ordered by id, so equal scores keep a stable order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// List returns filter-matched chunks ordered by id.
func (p *PostgresIndex) List(ctx context.Context, filter Filter, limit int) ([]ingest.Chunk, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.db.Pool.Query(ctx, `
		SELECT id, material_id, chapter_id, page_start, page_end, body, vector
		FROM chunks
		WHERE ($1 = '' OR material_id = $1)
		  AND ($2 = '' OR chapter_id = $2)
		ORDER BY id
		LIMIT $3`,
		filter.MaterialID, filter.ChapterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var out []ingest.Chunk
	for rows.Next() {
		var c ingest.Chunk
		if err := rows.Scan(&c.ID, &c.MaterialID, &c.ChapterID,
			&c.Pages.Start, &c.Pages.End, &c.Text, &c.Vector); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return out, nil
}

func (p *PostgresIndex) Count(ctx context.Context, filter Filter) (int, error) {
	var n int
	err := p.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chunks
		WHERE ($1 = '' OR material_id = $1)
		  AND ($2 = '' OR chapter_id = $2)`,
		filter.MaterialID, filter.ChapterID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}
