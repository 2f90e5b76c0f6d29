package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/llm"
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache wraps an llm.Provider embed call with a bounded FIFO cache keyed by
// a hash of (model, text). Entries are idempotent, so concurrent misses for
// the same text are harmless.
type Cache struct {
	provider llm.Provider
	model    string
	maxSize  int

	mu    sync.Mutex
	items map[string][]float32
	order []string
}

// NewCache builds an embedding cache in front of the provider.
func NewCache(provider llm.Provider, cfg config.EmbeddingConfig) *Cache {
	size := cfg.CacheSize
	if size <= 0 {
		size = 2048
	}
	return &Cache{
		provider: provider,
		model:    cfg.Model,
		maxSize:  size,
		items:    make(map[string][]float32),
	}
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns one vector per input text, consulting the cache first and
// calling the provider only for misses.
func (c *Cache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	c.mu.Lock()
	for i, t := range texts {
		if vec, ok := c.items[c.key(t)]; ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.provider.Embed(ctx, c.model, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vecs), len(missTexts))
	}

	c.mu.Lock()
	for j, i := range missIdx {
		out[i] = vecs[j]
		k := c.key(missTexts[j])
		if _, exists := c.items[k]; !exists {
			c.items[k] = vecs[j]
			c.order = append(c.order, k)
		}
	}
	for len(c.order) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.mu.Unlock()

	return out, nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
