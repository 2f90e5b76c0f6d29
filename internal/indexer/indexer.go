package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/campus-kb/campusqa/internal/embed"
	"github.com/campus-kb/campusqa/internal/index"
)

// Document is one corpus entry before embedding.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata index.Metadata `json:"metadata"`
}

// Corpus maps a namespace to its documents.
type Corpus map[string][]Document

// LoadCorpus reads a corpus JSON file.
func LoadCorpus(path string) (Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var corpus Corpus
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	return corpus, nil
}

// Indexer embeds corpus documents and replaces namespace content in the
// vector index.
type Indexer struct {
	embedder  embed.Embedder
	writer    index.Writer
	batchSize int
	logger    *log.Logger
}

// New builds an indexer. batchSize bounds each embedding call; zero means 32.
func New(embedder embed.Embedder, writer index.Writer, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Indexer{
		embedder:  embedder,
		writer:    writer,
		batchSize: batchSize,
		logger:    log.New(log.Writer(), "[INDEXER] ", log.LstdFlags),
	}
}

// IndexCorpus embeds every namespace and swaps it into the index wholesale.
// Returns chunk counts per namespace.
func (ix *Indexer) IndexCorpus(ctx context.Context, corpus Corpus) (map[string]int, error) {
	counts := make(map[string]int, len(corpus))
	for namespace, docs := range corpus {
		chunks, err := ix.embedNamespace(ctx, namespace, docs)
		if err != nil {
			return counts, fmt.Errorf("namespace %s: %w", namespace, err)
		}
		if err := ix.writer.ReplaceNamespace(ctx, namespace, chunks); err != nil {
			return counts, fmt.Errorf("replace namespace %s: %w", namespace, err)
		}
		counts[namespace] = len(chunks)
		ix.logger.Printf("indexed %d chunks into %s", len(chunks), namespace)
	}
	return counts, nil
}

func (ix *Indexer) embedNamespace(ctx context.Context, namespace string, docs []Document) ([]index.Chunk, error) {
	chunks := make([]index.Chunk, 0, len(docs))
	for start := 0; start < len(docs); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Text
		}
		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embed batch at %d: got %d vectors for %d texts", start, len(vecs), len(batch))
		}
		for i, d := range batch {
			chunk := index.Chunk{
				ID:        d.ID,
				Namespace: namespace,
				Text:      d.Text,
				Vector:    vecs[i],
				Metadata:  d.Metadata,
			}
			if err := chunk.Validate(); err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}
