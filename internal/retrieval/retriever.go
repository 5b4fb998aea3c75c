// Package retrieval answers "which chunks are relevant to this
// question", optionally widening the net with LLM query expansion.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/mltutor/mltutor/internal/ai"
	"github.com/mltutor/mltutor/internal/embedding"
	"github.com/mltutor/mltutor/internal/index"
)

// Completer is the slice of the LLM gateway the retriever needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

const (
	// Number of reformulations requested from the LLM on top of the
	// original question.
	expandVariants = 2
	// Candidates fetched per variant before the merged cut to k.
	perVariantFactor = 2
)

// Options tunes a single retrieval call.
type Options struct {
	K      int
	Filter index.Filter
	Expand bool
}

// Retriever embeds queries and searches the index. Expansion failures
// are logged and ignored; the original question always runs.
type Retriever struct {
	llm          Completer
	embedder     embedding.Embedder
	index        index.Index
	expandPrompt string
	log          *slog.Logger
}

func New(llm Completer, embedder embedding.Embedder, idx index.Index, expandPrompt string, log *slog.Logger) *Retriever {
	return &Retriever{
		llm:          llm,
		embedder:     embedder,
		index:        idx,
		expandPrompt: expandPrompt,
		log:          log,
	}
}

// Retrieve returns up to opts.K hits for the question, best first.
// An empty result is a valid answer, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, opts Options) ([]index.Hit, error) {
	queries := []string{question}
	if opts.Expand {
		queries = append(queries, r.expand(ctx, question)...)
	}

	perVariant := opts.K * perVariantFactor
	best := make(map[string]index.Hit)
	order := make([]string, 0, perVariant)

	for _, q := range queries {
		vec, err := r.embedder.Embed(ctx, q)
		if err != nil {
			return nil, err
		}
		hits, err := r.index.Search(ctx, vec, perVariant, opts.Filter)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			prev, seen := best[h.Chunk.ID]
			if !seen {
				order = append(order, h.Chunk.ID)
				best[h.Chunk.ID] = h
				continue
			}
			if h.Score > prev.Score {
				best[h.Chunk.ID] = h
			}
		}
	}

	merged := make([]index.Hit, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	// First-seen order breaks score ties, keeping results stable
	// across runs.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if opts.K > 0 && len(merged) > opts.K {
		merged = merged[:opts.K]
	}
	return merged, nil
}

// expand asks the LLM for reformulations of the question, one per
// line. Any failure falls back to no extra variants.
func (r *Retriever) expand(ctx context.Context, question string) []string {
	resp, err := r.llm.Complete(ctx, ai.CompletionRequest{
		Task: ai.TaskQueryExpansion,
		Messages: []ai.Message{
			{Role: "system", Content: r.expandPrompt},
			{Role: "user", Content: question},
		},
		MaxTokens:   256,
		Temperature: 0.7,
	})
	if err != nil {
		r.log.Warn("query expansion failed, using original question only", slog.Any("error", err))
		return nil
	}

	var variants []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" || strings.EqualFold(line, question) {
			continue
		}
		variants = append(variants, line)
		if len(variants) == expandVariants {
			break
		}
	}
	return variants
}
