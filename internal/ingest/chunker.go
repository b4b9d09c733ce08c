// Package ingest turns knowledge documents into embedded chunks in the
// store. Chunking respects text boundaries (paragraph over sentence over
// clause over word) so retrieval passages read as coherent prose.
package ingest

import (
	"regexp"
	"strings"
)

// charsPerToken approximates tokens from characters; chunk sizes are
// configured in tokens.
const charsPerToken = 4

// ChunkerConfig sets chunk sizing in tokens.
type ChunkerConfig struct {
	ChunkSize    int // target tokens per chunk
	ChunkOverlap int // tokens carried from the previous chunk
	MinChunkSize int // chunks smaller than this merge into their neighbor
}

// DefaultChunkerConfig returns the production sizing.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{ChunkSize: 500, ChunkOverlap: 50, MinChunkSize: 100}
}

// Chunker splits normalized text into overlapping chunks.
type Chunker struct {
	maxChars     int
	overlapChars int
	minChars     int
}

// NewChunker builds a chunker from token-denominated config.
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultChunkerConfig()
	}
	return &Chunker{
		maxChars:     cfg.ChunkSize * charsPerToken,
		overlapChars: cfg.ChunkOverlap * charsPerToken,
		minChars:     cfg.MinChunkSize * charsPerToken,
	}
}

var (
	collapseSpaces   = regexp.MustCompile(`[ \t]+`)
	collapseNewlines = regexp.MustCompile(`\n{3,}`)
	sentenceEnd      = regexp.MustCompile(`[.!?]+\s+`)
)

// splitSentences cuts after sentence punctuation, keeping the punctuation
// with its sentence.
func splitSentences(s string) []string {
	ends := sentenceEnd.FindAllStringIndex(s, -1)
	if len(ends) == 0 {
		return []string{s}
	}
	var out []string
	start := 0
	for _, end := range ends {
		out = append(out, s[start:end[1]])
		start = end[1]
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// normalize collapses whitespace runs without destroying paragraph breaks.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = collapseSpaces.ReplaceAllString(text, " ")
	text = collapseNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Chunk splits text into chunks of at most the configured size, preferring
// paragraph boundaries, then sentences, then clauses, then words. Adjacent
// chunks share the configured overlap so retrieval never loses a fact that
// straddles a cut.
func (c *Chunker) Chunk(text string) []string {
	text = normalize(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.maxChars {
		return []string{text}
	}

	pieces := c.splitRecursive(text, 0)

	// Assemble pieces into chunks up to maxChars, seeding each new chunk
	// with the tail of the previous one.
	var chunks []string
	var current strings.Builder
	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+len(piece)+1 > c.maxChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			if c.overlapChars > 0 && len(chunks) > 0 {
				current.WriteString(tailWords(chunks[len(chunks)-1], c.overlapChars))
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	// A runt tail merges backward rather than standing alone.
	if len(chunks) > 1 && len(chunks[len(chunks)-1]) < c.minChars {
		last := chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
		chunks[len(chunks)-1] = chunks[len(chunks)-1] + " " + last
	}
	return chunks
}

// boundary preference, coarse to fine; every splitter keeps separators with
// the piece to their left so chunk text stays verbatim source text
var splitters = []func(string) []string{
	func(s string) []string { return strings.SplitAfter(s, "\n\n") },
	splitSentences,
	func(s string) []string { return strings.SplitAfter(s, ", ") },
	func(s string) []string { return strings.SplitAfter(s, " ") },
}

// splitRecursive breaks text into pieces no larger than maxChars, using the
// coarsest boundary that works for each oversized piece.
func (c *Chunker) splitRecursive(text string, level int) []string {
	if level >= len(splitters) {
		// Single word longer than a chunk; hard cut.
		var out []string
		for len(text) > c.maxChars {
			out = append(out, text[:c.maxChars])
			text = text[c.maxChars:]
		}
		if text != "" {
			out = append(out, text)
		}
		return out
	}

	var out []string
	for _, piece := range splitters[level](text) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if len(piece) > c.maxChars {
			out = append(out, c.splitRecursive(piece, level+1)...)
		} else {
			out = append(out, piece)
		}
	}
	return out
}

// tailWords returns roughly the last n characters of s, cut at a word
// boundary.
func tailWords(s string, n int) string {
	if len(s) <= n {
		return s
	}
	tail := s[len(s)-n:]
	if i := strings.IndexByte(tail, ' '); i >= 0 {
		tail = tail[i+1:]
	}
	return tail
}
