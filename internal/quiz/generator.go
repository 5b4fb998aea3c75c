package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/mltutor/mltutor/internal/ai"
	"github.com/mltutor/mltutor/internal/index"
	"github.com/mltutor/mltutor/internal/ingest"
	"github.com/mltutor/mltutor/internal/prompts"
)

const (
	// Attempts per question slot before the slot is given up.
	slotAttempts = 3
	// How much of a chunk is kept as the question's source snippet.
	snippetLen = 200
	// Upper bound on candidate chunks loaded per generation.
	poolLimit = 200
)

// Completer is the slice of the LLM gateway the generator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Counts says how many questions of each type a batch should hold.
type Counts struct {
	Choice  int `json:"choice"`
	Boolean int `json:"boolean"`
}

func (c Counts) total() int { return c.Choice + c.Boolean }

// Request describes one generation batch.
type Request struct {
	MaterialID string
	ChapterID  string
	Counts     Counts
	Difficulty string
}

// Generator produces validated questions from indexed material. Bad
// LLM responses cost a retry, then the slot; only an entirely empty
// batch is an error.
type Generator struct {
	llm     Completer
	index   index.Index
	recency RecencyTracker
	store   QuestionStore
	pack    *prompts.Pack
	log     *slog.Logger
}

func NewGenerator(llm Completer, idx index.Index, recency RecencyTracker, store QuestionStore, pack *prompts.Pack, log *slog.Logger) *Generator {
	return &Generator{
		llm:     llm,
		index:   idx,
		recency: recency,
		store:   store,
		pack:    pack,
		log:     log,
	}
}

// Generate builds a quiz batch. The result may be shorter than
// requested when individual slots fail validation repeatedly.
func (g *Generator) Generate(ctx context.Context, req Request) ([]Question, error) {
	filter := index.Filter{MaterialID: req.MaterialID, ChapterID: req.ChapterID}
	pool, err := g.index.List(ctx, filter, poolLimit)
	if err != nil {
		return nil, fmt.Errorf("loading candidate chunks: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrMaterialNotIndexed
	}
	pool = g.biasAgainstRecent(ctx, req.MaterialID, pool)

	truths := truthSchedule(req.Counts.Boolean)
	seenStems := make(map[string]bool)
	var (
		questions []Question
		usedIDs   []string
		cursor    int
	)

	for slot := 0; slot < req.Counts.total(); slot++ {
		qtype := TypeChoice
		var truth string
		if slot >= req.Counts.Choice {
			qtype = TypeBoolean
			truth = truths[slot-req.Counts.Choice]
		}

		var q *Question
		for attempt := 0; attempt < slotAttempts; attempt++ {
			chunk := pool[cursor%len(pool)]
			cursor++

			q, err = g.generateOne(ctx, chunk, qtype, truth, req.Difficulty)
			if err != nil {
				g.log.Warn("question slot attempt failed",
					slog.String("material_id", req.MaterialID),
					slog.String("qtype", string(qtype)),
					slog.Int("slot", slot),
					slog.Int("attempt", attempt+1),
					slog.Any("error", err))
				q = nil
				continue
			}
			if seenStems[NormalizeAnswer(q.Stem)] {
				g.log.Warn("duplicate stem in batch, retrying slot",
					slog.String("material_id", req.MaterialID),
					slog.Int("slot", slot))
				q = nil
				continue
			}
			usedIDs = append(usedIDs, chunk.ID)
			break
		}
		if q == nil {
			continue
		}
		seenStems[NormalizeAnswer(q.Stem)] = true
		questions = append(questions, *q)
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestionsGenerated
	}

	if err := g.recency.MarkUsed(ctx, req.MaterialID, usedIDs); err != nil {
		g.log.Warn("recording used chunks failed", slog.Any("error", err))
	}
	if err := g.store.Save(ctx, questions); err != nil {
		return nil, fmt.Errorf("persisting questions: %w", err)
	}
	return questions, nil
}

// generateOne prompts for a single question and validates the result.
func (g *Generator) generateOne(ctx context.Context, chunk ingest.Chunk, qtype QType, truth, difficulty string) (*Question, error) {
	var prompt string
	vars := map[string]string{
		"context":    chunk.Text,
		"difficulty": difficulty,
	}
	if qtype == TypeBoolean {
		vars["truth"] = truth
		prompt = prompts.Render(g.pack.QuizBoolean, vars)
	} else {
		prompt = prompts.Render(g.pack.QuizChoice, vars)
	}

	resp, err := g.llm.Complete(ctx, ai.CompletionRequest{
		Task:        ai.TaskQuizGeneration,
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens:   1024,
		Temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}

	raw, err := parseQuestion(resp.Content, qtype)
	if err != nil {
		return nil, err
	}

	q := Question{
		ID:            uuid.NewString(),
		MaterialID:    chunk.MaterialID,
		ChapterID:     chunk.ChapterID,
		Type:          qtype,
		Stem:          strings.TrimSpace(raw.Stem),
		Options:       raw.Options,
		CorrectAnswer: strings.TrimSpace(raw.CorrectAnswer),
		Explanation:   strings.TrimSpace(raw.Explanation),
		Difficulty:    difficulty,
		SourceSnippet: snippet(chunk.Text),
		Page:          chunk.Pages.Start,
	}
	if qtype == TypeBoolean {
		canonical, ok := canonicalBool(q.CorrectAnswer)
		if !ok {
			return nil, fmt.Errorf("answer %q is not a boolean label", q.CorrectAnswer)
		}
		q.CorrectAnswer = canonical
		q.Options = []string{LabelTrue, LabelFalse}
	} else {
		// Models tend to list the correct option first.
		rand.Shuffle(len(q.Options), func(i, j int) {
			q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
		})
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// biasAgainstRecent moves chunks used in recent generations to the
// back of the pool, keeping relative order within each half stable.
func (g *Generator) biasAgainstRecent(ctx context.Context, materialID string, pool []ingest.Chunk) []ingest.Chunk {
	recent, err := g.recency.RecentlyUsed(ctx, materialID)
	if err != nil {
		g.log.Warn("reading recent chunks failed", slog.Any("error", err))
		return pool
	}
	if len(recent) == 0 {
		return pool
	}
	fresh := make([]ingest.Chunk, 0, len(pool))
	var stale []ingest.Chunk
	for _, c := range pool {
		if recent[c.ID] {
			stale = append(stale, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	return append(fresh, stale...)
}

// truthSchedule balances True and False across a batch so boolean
// quizzes are not guessable by always answering True.
func truthSchedule(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = LabelTrue
		if i%2 == 1 {
			out[i] = LabelFalse
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func canonicalBool(s string) (string, bool) {
	switch NormalizeAnswer(s) {
	case "true":
		return LabelTrue, true
	case "false":
		return LabelFalse, true
	}
	return "", false
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	cut := text[:snippetLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
