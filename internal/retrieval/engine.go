package retrieval

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/embed"
	"github.com/campus-kb/campusqa/internal/index"
	"github.com/campus-kb/campusqa/internal/lexical"
	"github.com/campus-kb/campusqa/internal/rerank"
)

// Source labels for candidate provenance.
const (
	SourceDense   = "dense"
	SourceLexical = "lexical"
)

// Candidate is one ranked evidence chunk headed for the prompt. Score is the
// rank key for the current stage; the per-stage fields keep the intermediate
// scores visible.
type Candidate struct {
	Chunk        index.Chunk `json:"chunk"`
	Score        float64     `json:"score"`
	Source       string      `json:"source"`
	DenseScore   float64     `json:"dense_score,omitempty"`
	LexicalScore float64     `json:"lexical_score,omitempty"`
	RerankScore  float64     `json:"rerank_score,omitempty"`
	Boost        float64     `json:"boost,omitempty"`
}

// Engine runs the staged retrieval pipeline: dense namespace search, optional
// cross-encoder rerank, optional lexical fallback, then token-budget packing.
type Engine struct {
	cfg      config.RetrievalConfig
	embedder embed.Embedder
	searcher index.Searcher
	reranker rerank.Reranker
	lexidx   *lexical.Index
	counter  TokenCounter
	logger   *log.Logger
}

// NewEngine assembles the retrieval pipeline. reranker and lexidx may be nil;
// the corresponding stages then pass through.
func NewEngine(cfg config.RetrievalConfig, embedder embed.Embedder, searcher index.Searcher, reranker rerank.Reranker, lexidx *lexical.Index, counter TokenCounter) *Engine {
	if counter == nil {
		counter = WhitespaceCounter{}
	}
	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		searcher: searcher,
		reranker: reranker,
		lexidx:   lexidx,
		counter:  counter,
		logger:   log.New(log.Writer(), "[RETRIEVE] ", log.LstdFlags),
	}
}

// Retrieve returns the best evidence candidates for the query, ordered
// best-first and trimmed to the context token budget. Stage failures degrade
// to fewer candidates; Retrieve itself only fails on a cancelled context.
func (e *Engine) Retrieve(ctx context.Context, query string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := []Candidate{}
	if e.cfg.EnableDense {
		candidates = e.denseSearch(ctx, query)
	}

	if e.cfg.EnableRerank && e.reranker != nil && len(candidates) > 0 {
		candidates = e.rerankStage(ctx, query, candidates)
	}

	if e.cfg.EnableLexicalFallback && e.lexidx != nil && len(candidates) < e.cfg.MinCandidates {
		candidates = e.lexicalFallback(ctx, query, candidates)
	}

	return e.pack(candidates), nil
}

type namespaceResult struct {
	namespace string
	order     int
	matches   []index.Match
}

func (e *Engine) denseSearch(ctx context.Context, query string) []Candidate {
	vecs, err := e.embedder.Embed(ctx, []string{query})
	var queryVec []float32
	if err != nil || len(vecs) == 0 {
		e.logger.Printf("query embedding failed, namespaces will return empty: %v", err)
	} else {
		queryVec = vecs[0]
	}

	results := make([]namespaceResult, len(e.cfg.Namespaces))
	var wg sync.WaitGroup
	for i, ns := range e.cfg.Namespaces {
		wg.Add(1)
		go func(i int, ns string) {
			defer wg.Done()
			matches, err := e.searcher.SearchChunks(ctx, ns, queryVec, e.cfg.NamespaceTopK)
			if err != nil {
				e.logger.Printf("namespace %s search failed, treating as empty: %v", ns, err)
				matches = nil
			}
			results[i] = namespaceResult{namespace: ns, order: i, matches: matches}
		}(i, ns)
	}
	wg.Wait()

	boosts := e.namespaceBoosts(query)

	var merged []Candidate
	for _, res := range results {
		if len(res.matches) == 0 {
			continue
		}
		raw := make([]float64, len(res.matches))
		for j, m := range res.matches {
			raw[j] = m.Score
		}
		normalized := normalizeScores(raw)
		boost := boosts[res.namespace]
		if boost == 0 {
			boost = e.cfg.DefaultBoost
		}
		for j, m := range res.matches {
			merged = append(merged, Candidate{
				Chunk:      m.Chunk,
				Score:      normalized[j] * boost,
				Source:     SourceDense,
				DenseScore: normalized[j],
				Boost:      boost,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if e.cfg.TopK > 0 && len(merged) > e.cfg.TopK {
		merged = merged[:e.cfg.TopK]
	}
	return merged
}

func (e *Engine) rerankStage(ctx context.Context, query string, candidates []Candidate) []Candidate {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Text
	}
	scores, err := e.reranker.Score(ctx, query, texts)
	if err != nil {
		e.logger.Printf("rerank unavailable, passing candidates through: %v", err)
		return candidates
	}
	kept := make([]Candidate, 0, len(candidates))
	for i, c := range candidates {
		if scores[i] < e.cfg.RerankThreshold {
			continue
		}
		c.Score = scores[i]
		c.RerankScore = scores[i]
		kept = append(kept, c)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return kept
}

func (e *Engine) lexicalFallback(ctx context.Context, query string, candidates []Candidate) []Candidate {
	hits, err := e.lexidx.Search(ctx, query, e.cfg.TopK)
	if err != nil {
		e.logger.Printf("lexical fallback failed: %v", err)
		return candidates
	}
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.Chunk.Namespace+"/"+c.Chunk.ID] = true
	}
	for _, h := range hits {
		key := h.Chunk.Namespace + "/" + h.Chunk.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, Candidate{Chunk: h.Chunk, Score: h.Score, Source: SourceLexical, LexicalScore: h.Score})
	}
	return candidates
}

// pack greedily accepts candidates in ranked order until the next one would
// overflow the token budget. Whole candidates only, never a partial text.
func (e *Engine) pack(candidates []Candidate) []Candidate {
	budget := e.cfg.MaxContextTokens
	if budget <= 0 {
		return candidates
	}
	packed := make([]Candidate, 0, len(candidates))
	used := 0
	for _, c := range candidates {
		cost := e.counter.Count(c.Chunk.Text)
		if used+cost > budget {
			break
		}
		used += cost
		packed = append(packed, c)
	}
	return packed
}
