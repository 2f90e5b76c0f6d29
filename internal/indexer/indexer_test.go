package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/campus-kb/campusqa/internal/index"
)

type countingEmbedder struct {
	batches int
	fail    bool
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.fail {
		return nil, fmt.Errorf("encoder down")
	}
	c.batches++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func TestIndexCorpusReplacesNamespaces(t *testing.T) {
	mem := index.NewMemoryIndex()
	embedder := &countingEmbedder{}
	ix := New(embedder, mem, 2)

	corpus := Corpus{
		"courses": {
			{ID: "c1", Text: "CS101 Intro, 6 credits"},
			{ID: "c2", Text: "MATH201 Calculus, 9 credits"},
			{ID: "c3", Text: "PHYS110 Mechanics, 6 credits"},
		},
		"regulations": {
			{ID: "r1", Text: "Exams may be retaken twice per year"},
		},
	}
	counts, err := ix.IndexCorpus(context.Background(), corpus)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if counts["courses"] != 3 || counts["regulations"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	// Batch size 2 over 3 courses plus 1 regulation: 2 + 1 batches.
	if embedder.batches != 3 {
		t.Fatalf("expected 3 embed batches, got %d", embedder.batches)
	}

	listed, err := mem.ListChunks(context.Background(), "courses")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 indexed chunks, got %d", len(listed))
	}
	if len(listed[0].Vector) == 0 {
		t.Fatal("chunks must carry embeddings")
	}
}

func TestIndexCorpusEmbedFailure(t *testing.T) {
	ix := New(&countingEmbedder{fail: true}, index.NewMemoryIndex(), 0)
	_, err := ix.IndexCorpus(context.Background(), Corpus{"courses": {{ID: "c1", Text: "x"}}})
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.json")
	content := `{"documents":[{"id":"d1","text":"Thesis deadline is June","metadata":{"source_file":"handbook.pdf","page":12}}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	corpus, err := LoadCorpus(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	docs := corpus["documents"]
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Metadata.SourceFile != "handbook.pdf" || docs[0].Metadata.Page != 12 {
		t.Fatalf("metadata not decoded: %+v", docs[0].Metadata)
	}

	if _, err := LoadCorpus(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunScheduleRejectsBadSpec(t *testing.T) {
	ix := New(&countingEmbedder{}, index.NewMemoryIndex(), 0)
	err := ix.RunSchedule(context.Background(), "not a cron", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
