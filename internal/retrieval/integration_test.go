package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"counsel/internal/store"
	"counsel/internal/types"
)

// SQLiteRetrievalSuite runs the engine against the real chunk store instead
// of the in-memory test source.
type SQLiteRetrievalSuite struct {
	suite.Suite
	store  *store.ChunkStore
	engine *Engine
	emb    *mockEmbedder
}

func (s *SQLiteRetrievalSuite) SetupTest() {
	cs, err := store.Open(":memory:")
	require.NoError(s.T(), err)
	s.store = cs

	ctx := context.Background()
	require.NoError(s.T(), cs.ReplaceDocument(ctx,
		store.Document{ID: "doc-1", Name: "pricing.md", IngestedAt: time.Now()},
		[]types.KnowledgeChunk{
			{DocumentID: "doc-1", DocumentName: "pricing.md", ChunkIndex: 0,
				Text: "Plans start at $99 per month.", Embedding: []float32{0.9, 0.1, 0}},
		}))
	require.NoError(s.T(), cs.ReplaceDocument(ctx,
		store.Document{ID: "doc-2", Name: "legal.md", IngestedAt: time.Now()},
		[]types.KnowledgeChunk{
			{DocumentID: "doc-2", DocumentName: "legal.md", ChunkIndex: 0,
				Text: "Liability is capped at fees paid.", Embedding: []float32{0, 1, 0}},
		}))

	s.emb = &mockEmbedder{vectors: map[string][]float32{
		"What's our pricing?": {1, 0, 0},
	}}
	s.engine = NewEngine(s.emb, cs, DefaultOptions())
}

func (s *SQLiteRetrievalSuite) TearDownTest() {
	s.store.Close()
}

func (s *SQLiteRetrievalSuite) TestScopedSearchHitsOwnDocument() {
	res, err := s.engine.Search(context.Background(), "What's our pricing?", []string{"doc-1"})
	s.Require().NoError(err)
	s.True(res.Matched)
	s.Require().Len(res.Passages, 1)
	s.Equal("pricing.md", res.Passages[0].DocumentName)
	s.Contains(res.Passages[0].Text, "$99")
}

func (s *SQLiteRetrievalSuite) TestScopedSearchMissesForeignDocument() {
	// The legal persona's scope holds only an orthogonal chunk.
	res, err := s.engine.Search(context.Background(), "What's our pricing?", []string{"doc-2"})
	s.Require().NoError(err)
	s.False(res.Matched)
	s.Empty(res.Passages)
}

func (s *SQLiteRetrievalSuite) TestConcurrentSearches() {
	// Two personas search the same store during one dispatch round.
	ctx := context.Background()
	done := make(chan error, 2)
	go func() {
		_, err := s.engine.Search(ctx, "What's our pricing?", []string{"doc-1"})
		done <- err
	}()
	go func() {
		_, err := s.engine.Search(ctx, "What's our pricing?", []string{"doc-2"})
		done <- err
	}()
	s.NoError(<-done)
	s.NoError(<-done)
}

func TestSQLiteRetrievalSuite(t *testing.T) {
	suite.Run(t, new(SQLiteRetrievalSuite))
}
