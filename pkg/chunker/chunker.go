package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vlehtola/docmind/internal/models"
)

// TruncationMarker is appended whenever a single row exceeds the character
// budget and has to be cut rather than split.
const TruncationMarker = " [truncated]"

// boundaryWindow is how far back from the budget edge we look for a sentence
// or paragraph boundary before giving up and cutting hard.
const boundaryWindow = 200

type ChunkerConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
	TableGroupRows int
}

type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 150
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 80
	}
	if config.TableGroupRows == 0 {
		config.TableGroupRows = 1
	}
	return Chunker{config: config}
}

// Candidate is a passage not yet attached to a document.
type Candidate struct {
	Text    string
	Kind    models.PassageKind
	Locator string
}

// Scanner is a lazy, finite, restartable sequence of candidates. Ingestion
// pulls from it so a large document never has to be materialized as one
// slice of passages.
type Scanner struct {
	pull func() (Candidate, bool)
	cur  Candidate
}

func (s *Scanner) Next() bool {
	c, ok := s.pull()
	if !ok {
		return false
	}
	s.cur = c
	return true
}

func (s *Scanner) Candidate() Candidate { return s.cur }

// Collect drains a scanner. Convenient for tests and small documents.
func Collect(s *Scanner) []Candidate {
	var out []Candidate
	for s.Next() {
		out = append(out, s.Candidate())
	}
	return out
}

// Prose returns a scanner over overlapping, bounded-size passages of text.
// Splits prefer sentence or paragraph boundaries inside the budget and fall
// back to a hard cut when none exists. A whitespace-only input yields zero
// passages.
func (c *Chunker) Prose(text string) *Scanner {
	cfg := c.config
	pos := 0
	done := strings.TrimSpace(text) == ""

	pull := func() (Candidate, bool) {
		for !done && pos < len(text) {
			start := pos
			end := start + cfg.ChunkSize

			if end >= len(text) {
				end = len(text)
				done = true
			} else {
				end = adjustCut(text, start, end)
			}

			chunk := strings.TrimSpace(text[start:end])

			if done {
				pos = len(text)
				// A final fragment no longer than the overlap is already
				// covered by the previous passage's tail.
				if start > 0 && len(chunk) <= cfg.ChunkOverlap && len(chunk) < cfg.MinChunkLength {
					return Candidate{}, false
				}
			} else {
				next := end - cfg.ChunkOverlap
				if next <= start {
					next = end
				}
				// bytes skipped here sit inside the previous passage
				for next < len(text) && !utf8.RuneStart(text[next]) {
					next++
				}
				pos = next
			}

			if chunk == "" {
				continue
			}
			return Candidate{
				Text:    chunk,
				Kind:    models.KindProse,
				Locator: fmt.Sprintf("chars %d-%d", start, end),
			}, true
		}
		return Candidate{}, false
	}

	return &Scanner{pull: pull}
}

// adjustCut moves a hard cut back to the nearest sentence or paragraph
// boundary within the boundary window, then off any multi-byte rune edge.
func adjustCut(text string, start, end int) int {
	limit := end - boundaryWindow
	if limit < start+1 {
		limit = start + 1
	}
	for i := end - 1; i >= limit; i-- {
		switch text[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// Table returns a scanner over table-row passages. Each passage carries the
// column headers for context and covers at most TableGroupRows rows; a row
// that alone exceeds the budget is cut with an explicit marker, never
// dropped.
func (c *Chunker) Table(table models.Table) *Scanner {
	cfg := c.config
	row := 0

	pull := func() (Candidate, bool) {
		for row < len(table.Rows) {
			start := row
			var lines []string

			for row < len(table.Rows) && row-start < cfg.TableGroupRows {
				line := renderRow(table.Headers, table.Rows[row])
				if len(lines) > 0 && groupLen(lines)+len(line)+1 > cfg.ChunkSize {
					break
				}
				lines = append(lines, line)
				row++
			}

			text := strings.Join(lines, "\n")
			if len(text) > cfg.ChunkSize {
				text = hardTruncate(text, cfg.ChunkSize)
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			return Candidate{
				Text:    text,
				Kind:    models.KindTableRow,
				Locator: fmt.Sprintf("%s rows %d-%d", table.Sheet, start+1, row),
			}, true
		}
		return Candidate{}, false
	}

	return &Scanner{pull: pull}
}

func renderRow(headers []string, row []string) string {
	pairs := make([]string, 0, len(headers))
	for i, h := range headers {
		val := ""
		if i < len(row) {
			val = row[i]
		}
		if h == "" {
			h = fmt.Sprintf("column %d", i+1)
		}
		pairs = append(pairs, fmt.Sprintf("%s: %s", h, val))
	}
	return strings.Join(pairs, " | ")
}

func groupLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	return n
}

func hardTruncate(text string, budget int) string {
	cut := budget - len(TruncationMarker)
	if cut < 1 {
		cut = 1
	}
	for cut > 1 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + TruncationMarker
}
