package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"counsel/internal/embedding"
	"counsel/internal/logging"
	"counsel/internal/store"
	"counsel/internal/types"
)

// embedBatchSize bounds one embedding request; embedConcurrency bounds how
// many batches are in flight at once.
const (
	embedBatchSize   = 16
	embedConcurrency = 4
)

// Ingester chunks, embeds, and stores knowledge documents.
type Ingester struct {
	store    *store.ChunkStore
	embedder embedding.Engine
	chunker  *Chunker
}

// NewIngester wires an ingester over the chunk store and embedding engine.
func NewIngester(cs *store.ChunkStore, embedder embedding.Engine, cfg ChunkerConfig) *Ingester {
	return &Ingester{store: cs, embedder: embedder, chunker: NewChunker(cfg)}
}

// DocumentID derives a stable document ID from a file path, so re-ingesting
// the same file replaces its chunks instead of accumulating duplicates.
func DocumentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()
}

// IngestFile reads, chunks, embeds, and stores one document. It returns the
// stored document record and the number of chunks written.
func (in *Ingester) IngestFile(ctx context.Context, path string) (store.Document, int, error) {
	timer := logging.StartTimer(logging.CategoryIngest, "IngestFile")
	defer timer.Stop()

	if !Supported(path) {
		return store.Document{}, 0, fmt.Errorf("ingest: unsupported file type: %s", path)
	}

	text, err := ReadDocument(path)
	if err != nil {
		return store.Document{}, 0, err
	}

	pieces := in.chunker.Chunk(text)
	if len(pieces) == 0 {
		return store.Document{}, 0, fmt.Errorf("ingest: %s has no text content", path)
	}

	vectors, err := in.embedAll(ctx, pieces)
	if err != nil {
		return store.Document{}, 0, fmt.Errorf("ingest: embed %s: %w", path, err)
	}

	doc := store.Document{
		ID:         DocumentID(path),
		Name:       filepath.Base(path),
		Path:       path,
		IngestedAt: time.Now(),
	}

	chunks := make([]types.KnowledgeChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = types.KnowledgeChunk{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			ChunkIndex:   i,
			Text:         piece,
			Embedding:    vectors[i],
		}
	}

	if err := in.store.ReplaceDocument(ctx, doc, chunks); err != nil {
		return store.Document{}, 0, err
	}

	logging.Ingest("%s: %d chunks (%d chars) via %s", doc.Name, len(chunks), len(text), in.embedder.Name())
	return doc, len(chunks), nil
}

// embedAll embeds all pieces in bounded-concurrency batches.
func (in *Ingester) embedAll(ctx context.Context, pieces []string) ([][]float32, error) {
	vectors := make([][]float32, len(pieces))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(pieces); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		g.Go(func() error {
			batch, err := in.embedder.EmbedBatch(ctx, pieces[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// IngestDir ingests every supported file directly under dir. It keeps going
// past individual file failures and reports them together at the end.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("ingest: read dir %s: %w", dir, err)
	}

	ingested := 0
	var failures []error
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, _, err := in.IngestFile(ctx, path); err != nil {
			logging.Get(logging.CategoryIngest).Warn("skipping %s: %v", path, err)
			failures = append(failures, err)
			continue
		}
		ingested++
	}

	if len(failures) > 0 {
		return ingested, fmt.Errorf("ingest: %d of %d files failed, first: %w",
			len(failures), ingested+len(failures), failures[0])
	}
	return ingested, nil
}

// Remove deletes the document previously ingested from path.
func (in *Ingester) Remove(ctx context.Context, path string) error {
	return in.store.DeleteDocument(ctx, DocumentID(path))
}
