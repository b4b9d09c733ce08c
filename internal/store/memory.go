package store

import (
	"context"
	"sync"

	"counsel/internal/types"
)

// MemoryStore is an in-memory chunk source for tests and ephemeral sessions
// that never touch disk. It satisfies the same read contract as ChunkStore.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []types.KnowledgeChunk
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add appends chunks to the store.
func (m *MemoryStore) Add(chunks ...types.KnowledgeChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
}

// ChunksByDocuments returns every chunk whose document ID is in documentIDs,
// applying the scope filter before any caller sees the data.
func (m *MemoryStore) ChunksByDocuments(_ context.Context, documentIDs []string) ([]types.KnowledgeChunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	allowed := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		allowed[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.KnowledgeChunk
	for _, c := range m.chunks {
		if allowed[c.DocumentID] {
			out = append(out, c)
		}
	}
	return out, nil
}
