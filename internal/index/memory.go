package index

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-memory cosine-similarity index. It backs tests and
// database-less one-shot runs; the postgres store is the production Searcher.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Chunk
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{namespaces: make(map[string]map[string]Chunk)}
}

// UpsertChunks inserts or replaces chunks by id within a namespace.
func (m *MemoryIndex) UpsertChunks(ctx context.Context, namespace string, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]Chunk)
		m.namespaces[namespace] = ns
	}
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
		c.Namespace = namespace
		ns[c.ID] = c
	}
	return nil
}

// ReplaceNamespace swaps the whole namespace content in one step.
func (m *MemoryIndex) ReplaceNamespace(ctx context.Context, namespace string, chunks []Chunk) error {
	m.mu.Lock()
	m.namespaces[namespace] = make(map[string]Chunk, len(chunks))
	m.mu.Unlock()
	return m.UpsertChunks(ctx, namespace, chunks)
}

// DeleteNamespace removes every chunk in the namespace.
func (m *MemoryIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

// ListChunks returns all chunks in a namespace.
func (m *MemoryIndex) ListChunks(ctx context.Context, namespace string) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns := m.namespaces[namespace]
	out := make([]Chunk, 0, len(ns))
	for _, c := range ns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SearchChunks returns the topK chunks of a namespace by cosine similarity.
func (m *MemoryIndex) SearchChunks(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 {
		topK = 10
	}
	ns := m.namespaces[namespace]
	matches := make([]Match, 0, len(ns))
	for _, c := range ns {
		matches = append(matches, Match{Chunk: c, Score: Cosine(vector, c.Vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Cosine computes cosine similarity over the shared prefix of two vectors.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
