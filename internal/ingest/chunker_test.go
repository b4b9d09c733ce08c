package ingest

import (
	"strings"
	"testing"
)

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	c := NewChunker(DefaultChunkerConfig())
	got := c.Chunk("A short knowledge note.")
	if len(got) != 1 || got[0] != "A short knowledge note." {
		t.Errorf("Chunk = %q", got)
	}
}

func TestChunkEmptyAndWhitespace(t *testing.T) {
	c := NewChunker(DefaultChunkerConfig())
	for _, in := range []string{"", "   ", "\n\n\n"} {
		if got := c.Chunk(in); got != nil {
			t.Errorf("Chunk(%q) = %v, want nil", in, got)
		}
	}
}

func TestChunkRespectsSizeAndParagraphs(t *testing.T) {
	// 25 tokens per chunk = 100 chars; paragraphs of ~60 chars each.
	c := NewChunker(ChunkerConfig{ChunkSize: 25, ChunkOverlap: 5, MinChunkSize: 5})

	para := strings.Repeat("word ", 12) // 60 chars
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 6))

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, expected a split", len(chunks))
	}
	for i, ch := range chunks {
		// Overlap seeding can push slightly past the target but never
		// wildly so.
		if len(ch) > 150 {
			t.Errorf("chunk %d is %d chars, over budget", i, len(ch))
		}
		if strings.TrimSpace(ch) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestChunkOverlapCarriesTail(t *testing.T) {
	c := NewChunker(ChunkerConfig{ChunkSize: 25, ChunkOverlap: 5, MinChunkSize: 5})

	var sentences []string
	for _, w := range []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"} {
		sentences = append(sentences, "The "+w+" team owns the "+w+" metric.")
	}
	chunks := c.Chunk(strings.Join(sentences, " "))
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, expected a split", len(chunks))
	}

	// The head of each later chunk repeats the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		head := strings.Fields(chunks[i])[0]
		if !strings.Contains(chunks[i-1], head) {
			t.Errorf("chunk %d head %q not found in predecessor", i, head)
		}
	}
}

func TestChunkKeepsClausePunctuation(t *testing.T) {
	// Sized so the sentence must split at the clause level.
	c := NewChunker(ChunkerConfig{ChunkSize: 10, ChunkOverlap: 0, MinChunkSize: 1})

	text := "The premium plan costs $99 per month, includes priority support, and renews annually."
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, expected a clause split", len(chunks))
	}

	// Splitting must not eat the commas: the chunks rejoined are the source
	// text, separators included.
	joined := strings.Join(chunks, " ")
	for _, clause := range []string{"$99 per month,", "priority support,"} {
		if !strings.Contains(joined, clause) {
			t.Errorf("clause %q lost its comma in %q", clause, joined)
		}
	}
}

func TestChunkHardCutsGiantToken(t *testing.T) {
	c := NewChunker(ChunkerConfig{ChunkSize: 10, ChunkOverlap: 0, MinChunkSize: 1})
	giant := strings.Repeat("x", 200)

	chunks := c.Chunk(giant)
	if len(chunks) < 2 {
		t.Fatalf("giant token not split: %d chunks", len(chunks))
	}
	total := 0
	for _, ch := range chunks {
		total += len(ch)
	}
	if total < 200 {
		t.Errorf("split lost content: %d of 200 chars", total)
	}
}

func TestChunkMergesRuntTail(t *testing.T) {
	c := NewChunker(ChunkerConfig{ChunkSize: 25, ChunkOverlap: 0, MinChunkSize: 20})

	text := strings.Repeat("steady sentence here. ", 5) + "tail."
	chunks := c.Chunk(text)
	last := chunks[len(chunks)-1]
	if len(last) < 20*charsPerToken && len(chunks) > 1 {
		t.Errorf("runt tail left standing: %q", last)
	}
}

func TestNormalize(t *testing.T) {
	in := "line one\r\nline   two\n\n\n\nline three\t\tend  "
	got := normalize(in)
	if strings.Contains(got, "\r") || strings.Contains(got, "  ") || strings.Contains(got, "\n\n\n") {
		t.Errorf("normalize left messy whitespace: %q", got)
	}
	if !strings.Contains(got, "line two\n\nline three") {
		t.Errorf("paragraph break lost: %q", got)
	}
}

func TestReadDocumentHTML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/page.html"
	html := `<html><head><title>x</title><style>p{color:red}</style></head>
	<body><script>alert(1)</script><h1>Pricing</h1><p>Plans start at $99.</p></body></html>`
	if err := writeFile(path, html); err != nil {
		t.Fatal(err)
	}

	got, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if !strings.Contains(got, "Pricing") || !strings.Contains(got, "Plans start at $99.") {
		t.Errorf("visible text missing: %q", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "color:red") {
		t.Errorf("script/style leaked into text: %q", got)
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"notes.txt": true, "a/b/README.md": true, "page.HTML": true,
		"binary.pdf": false, "archive.tar.gz": false, "noext": false,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}
