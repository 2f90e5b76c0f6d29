package lexical

import (
	"context"
	"testing"

	"github.com/campus-kb/campusqa/internal/index"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	chunks := []index.Chunk{
		{ID: "c1", Namespace: index.NamespaceCourses, Text: "CS101 Introduction to Computer Science, 6 credits, taught by Professor Rossi"},
		{ID: "c2", Namespace: index.NamespaceCourses, Text: "MATH201 Linear Algebra, 9 credits"},
		{ID: "r1", Namespace: index.NamespaceRegulations, Text: "Students may retake a failed exam at most twice per academic year"},
	}
	if err := idx.Load(context.Background(), chunks); err != nil {
		t.Fatalf("load: %v", err)
	}
	return idx
}

func TestSearchFindsKeywordMatches(t *testing.T) {
	idx := seedIndex(t)
	hits, err := idx.Search(context.Background(), "retake failed exam", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].Chunk.ID != "r1" {
		t.Fatalf("expected regulation chunk first, got %s", hits[0].Chunk.ID)
	}
	if hits[0].Score <= 0 {
		t.Fatalf("expected positive score, got %f", hits[0].Score)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	idx := seedIndex(t)
	hits, err := idx.Search(context.Background(), "credits", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) > 1 {
		t.Fatalf("expected at most 1 hit, got %d", len(hits))
	}
}

func TestSearchNoMatches(t *testing.T) {
	idx := seedIndex(t)
	hits, err := idx.Search(context.Background(), "zyzzyva", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestLoadRejectsInvalidChunk(t *testing.T) {
	idx, err := New()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	bad := []index.Chunk{{ID: "", Namespace: "courses", Text: "orphan"}}
	if err := idx.Load(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}
}
