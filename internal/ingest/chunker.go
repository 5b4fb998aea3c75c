package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrEmptyDocument is returned when no usable text survives filtering.
var ErrEmptyDocument = errors.New("ingest: document has no extractable text")

const (
	minChunkLen = 500
	maxChunkLen = 800
	// Fraction of a finished chunk carried into the next one so
	// sentences cut at a boundary stay searchable.
	overlapRatio = 0.12
)

var (
	chapterWordRe  = regexp.MustCompile(`(?i)^chapter\s+(\d+|[ivxlc]+)\b[\s.:-]*(.*)$`)
	chapterCJKRe   = regexp.MustCompile(`^第\s*([0-9一二三四五六七八九十百]+)\s*[章节課课]\s*(.*)$`)
	numberedHeadRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s+(\p{L}[^.!?]{2,60})$`)
	sentenceEndRe  = regexp.MustCompile(`([.!?。！？])\s+`)
)

// Chunker splits extracted pages into bounded segments with chapter
// assignments. The zero value is ready to use.
type Chunker struct{}

// Chunk cuts the pages of one material into overlapping windows,
// dropping boilerplate and numeric noise. Returned chunks carry no
// vectors yet. It returns ErrEmptyDocument when nothing survives.
func (c *Chunker) Chunk(materialID string, pages []Page) ([]Chunk, []Chapter, error) {
	boiler := boilerplateLines(pages)

	var (
		chunks   []Chunk
		chapters []Chapter
		cur      strings.Builder
		fresh    bool
		curStart = -1
		curEnd   = -1
		curChap  = ""
	)

	flush := func() {
		text := normalizeSpace(cur.String())
		cur.Reset()
		fresh = false
		if text == "" || isNumericNoise(text) {
			return
		}
		chunks = append(chunks, Chunk{
			ID:         ChunkID(materialID, curStart, text),
			MaterialID: materialID,
			ChapterID:  curChap,
			Pages:      PageRange{Start: curStart, End: curEnd},
			Text:       text,
		})
		// Seed the next window with the tail of this one.
		tail := overlapTail(text)
		cur.WriteString(tail)
		curStart = curEnd
	}

	for _, page := range pages {
		for _, line := range strings.Split(page.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || boiler[line] {
				continue
			}
			if title, ok := headingTitle(line); ok {
				// Without fresh text the window holds only the
				// previous chunk's overlap tail; emitting it would
				// duplicate a fragment of that chunk.
				if fresh {
					flush()
				}
				cur.Reset()
				ch := Chapter{
					ID:         fmt.Sprintf("%s-ch%d", materialID, len(chapters)+1),
					MaterialID: materialID,
					Title:      title,
					PageStart:  page.Number,
					PageEnd:    page.Number,
				}
				if n := len(chapters); n > 0 {
					chapters[n-1].PageEnd = page.Number
				}
				chapters = append(chapters, ch)
				curChap = ch.ID
				curStart = page.Number
				continue
			}
			if curStart < 0 {
				curStart = page.Number
			}
			curEnd = page.Number
			if n := len(chapters); n > 0 {
				chapters[n-1].PageEnd = page.Number
			}

			for _, sentence := range splitSentences(line) {
				for _, piece := range splitOversized(sentence) {
					if fresh && cur.Len()+len(piece) > maxChunkLen {
						flush()
					}
					if cur.Len() > 0 {
						cur.WriteByte(' ')
					}
					cur.WriteString(piece)
					fresh = true
					if cur.Len() >= minChunkLen {
						flush()
					}
				}
			}
		}
	}
	if fresh {
		flush()
	}

	if len(chunks) == 0 {
		return nil, nil, ErrEmptyDocument
	}
	return chunks, chapters, nil
}

// headingTitle reports whether a line looks like a chapter heading and
// returns its display title.
func headingTitle(line string) (string, bool) {
	if m := chapterWordRe.FindStringSubmatch(line); m != nil {
		title := strings.TrimSpace(m[2])
		if title == "" {
			title = "Chapter " + m[1]
		}
		return title, true
	}
	if m := chapterCJKRe.FindStringSubmatch(line); m != nil {
		title := strings.TrimSpace(m[2])
		if title == "" {
			title = "第" + m[1] + "章"
		}
		return title, true
	}
	if m := numberedHeadRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[2]), true
	}
	return "", false
}

// boilerplateLines finds short lines repeated across many pages, the
// usual running headers, footers and copyright notices.
func boilerplateLines(pages []Page) map[string]bool {
	if len(pages) < 3 {
		return nil
	}
	seen := make(map[string]int)
	for _, p := range pages {
		perPage := make(map[string]bool)
		for _, line := range strings.Split(p.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || len(line) > 80 {
				continue
			}
			if !perPage[line] {
				perPage[line] = true
				seen[line]++
			}
		}
	}
	threshold := len(pages) / 3
	if threshold < 3 {
		threshold = 3
	}
	out := make(map[string]bool)
	for line, n := range seen {
		if n >= threshold {
			out[line] = true
		}
	}
	return out
}

// isNumericNoise reports whether a candidate chunk is mostly digits
// and punctuation, as with page numbers or extracted table fragments.
func isNumericNoise(text string) bool {
	var letters, other int
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsSpace(r):
		default:
			other++
		}
	}
	if letters+other == 0 {
		return true
	}
	return float64(letters)/float64(letters+other) < 0.4
}

func splitSentences(text string) []string {
	parts := sentenceEndRe.Split(text, -1)
	marks := sentenceEndRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i < len(marks) {
			p += marks[i][1]
		}
		out = append(out, p)
	}
	return out
}

// splitOversized breaks a sentence that alone exceeds the window into
// word-boundary pieces that fit it. Run-on text without sentence
// punctuation otherwise lands in a single unbounded chunk.
func splitOversized(sentence string) []string {
	if len(sentence) <= maxChunkLen {
		return []string{sentence}
	}
	var out []string
	for len(sentence) > maxChunkLen {
		cut := strings.LastIndexByte(sentence[:maxChunkLen], ' ')
		if cut <= 0 {
			// A single token wider than the window; cut at the
			// nearest rune boundary.
			cut = maxChunkLen
			for cut > 0 && !utf8.RuneStart(sentence[cut]) {
				cut--
			}
		}
		out = append(out, strings.TrimSpace(sentence[:cut]))
		sentence = strings.TrimSpace(sentence[cut:])
	}
	if sentence != "" {
		out = append(out, sentence)
	}
	return out
}

func overlapTail(text string) string {
	n := int(float64(len(text)) * overlapRatio)
	if n == 0 {
		return ""
	}
	tail := text[len(text)-n:]
	// Cut at a word boundary so the overlap does not start mid-rune
	// or mid-word.
	if i := strings.IndexByte(tail, ' '); i >= 0 {
		tail = tail[i+1:]
	}
	return tail
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
