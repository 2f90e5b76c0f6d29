package index

import (
	"context"
	"math"
	"testing"
)

func TestMemoryIndexSearchOrdering(t *testing.T) {
	mem := NewMemoryIndex()
	ctx := context.Background()
	chunks := []Chunk{
		{ID: "a", Namespace: NamespaceDocuments, Text: "alpha", Vector: []float32{1, 0}},
		{ID: "b", Namespace: NamespaceDocuments, Text: "beta", Vector: []float32{0, 1}},
		{ID: "c", Namespace: NamespaceDocuments, Text: "gamma", Vector: []float32{0.7, 0.7}},
	}
	if err := mem.UpsertChunks(ctx, NamespaceDocuments, chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := mem.SearchChunks(ctx, NamespaceDocuments, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Chunk.ID != "a" || matches[1].Chunk.ID != "c" {
		t.Fatalf("unexpected order: %s, %s", matches[0].Chunk.ID, matches[1].Chunk.ID)
	}
}

func TestMemoryIndexEmptyVector(t *testing.T) {
	mem := NewMemoryIndex()
	ctx := context.Background()
	if err := mem.UpsertChunks(ctx, NamespaceDocuments, []Chunk{{ID: "a", Namespace: NamespaceDocuments, Text: "alpha", Vector: []float32{1}}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	matches, err := mem.SearchChunks(ctx, NamespaceDocuments, nil, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches for empty vector, got %d", len(matches))
	}
}

func TestMemoryIndexReplaceNamespace(t *testing.T) {
	mem := NewMemoryIndex()
	ctx := context.Background()
	first := []Chunk{
		{ID: "a", Namespace: NamespaceCourses, Text: "one", Vector: []float32{1}},
		{ID: "b", Namespace: NamespaceCourses, Text: "two", Vector: []float32{1}},
	}
	if err := mem.UpsertChunks(ctx, NamespaceCourses, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mem.ReplaceNamespace(ctx, NamespaceCourses, first[:1]); err != nil {
		t.Fatalf("replace: %v", err)
	}
	listed, err := mem.ListChunks(ctx, NamespaceCourses)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "a" {
		t.Fatalf("expected only chunk a after replace, got %+v", listed)
	}
}

func TestChunkValidate(t *testing.T) {
	valid := Chunk{ID: "x", Namespace: NamespaceCourses, Text: "text"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid chunk rejected: %v", err)
	}
	for _, bad := range []Chunk{
		{Namespace: NamespaceCourses, Text: "text"},
		{ID: "x", Text: "text"},
		{ID: "x", Namespace: NamespaceCourses},
	} {
		if err := bad.Validate(); err == nil {
			t.Fatalf("expected validation error for %+v", bad)
		}
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: got %f", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal vectors: got %f", got)
	}
	if got := Cosine(nil, []float32{1}); got != 0 {
		t.Fatalf("empty vector: got %f", got)
	}
}
