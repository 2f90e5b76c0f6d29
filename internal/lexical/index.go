package lexical

import (
	"context"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/campus-kb/campusqa/internal/index"
)

// Index is an in-memory BM25 index over chunk text. It backs the lexical
// fallback stage when dense retrieval comes back thin.
type Index struct {
	mu     sync.RWMutex
	bleve  bleve.Index
	chunks map[string]index.Chunk
}

type lexDoc struct {
	Text string `json:"text"`
}

// New creates an empty in-memory lexical index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, chunks: make(map[string]index.Chunk)}, nil
}

// Load indexes the given chunks, replacing any previous entry with the same
// namespace-qualified id.
func (x *Index) Load(ctx context.Context, chunks []index.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
		key := c.Namespace + "/" + c.ID
		if err := x.bleve.Index(key, lexDoc{Text: c.Text}); err != nil {
			return err
		}
		x.chunks[key] = c
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Len reports the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Search runs a BM25 match query and returns up to k hits with their bleve
// relevance scores.
func (x *Index) Search(ctx context.Context, q string, k int) ([]index.Match, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewMatchQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)
	x.mu.RLock()
	defer x.mu.RUnlock()
	res, err := x.bleve.SearchInContext(ctx, searchReq)
	if err != nil {
		return nil, err
	}
	var out []index.Match
	for _, hit := range res.Hits {
		c, ok := x.chunks[hit.ID]
		if !ok {
			continue
		}
		out = append(out, index.Match{Chunk: c, Score: hit.Score})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}
