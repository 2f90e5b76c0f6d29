package index

import (
	"context"
	"fmt"
	"strings"
)

// Namespace names for the topical partitions of the knowledge base.
const (
	NamespaceCourses     = "courses"     // structured row data rendered as text
	NamespaceDocuments   = "documents"   // free-text documents
	NamespaceRegulations = "regulations" // PDF-derived regulatory text
	NamespaceLexical     = "lexical"     // marks lexical-fallback provenance, never stored
)

// Metadata carries the validated chunk attributes plus an open map for
// pass-through keys that no component interprets.
type Metadata struct {
	SourceFile string            `json:"source_file,omitempty"`
	Page       int               `json:"page,omitempty"`
	Section    string            `json:"section,omitempty"`
	Table      string            `json:"table,omitempty"`
	Semester   string            `json:"semester,omitempty"`
	Rating     float64           `json:"rating,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Chunk is one unit of indexed knowledge. IDs are unique within a namespace;
// chunks are immutable at query time and replaced wholesale per namespace.
type Chunk struct {
	ID        string   `json:"id"`
	Namespace string   `json:"namespace"`
	Text      string   `json:"text"`
	Vector    []float32 `json:"vector,omitempty"`
	Metadata  Metadata `json:"metadata"`
}

// Validate checks that a chunk is indexable.
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("chunk id is required")
	}
	if strings.TrimSpace(c.Namespace) == "" {
		return fmt.Errorf("chunk namespace is required")
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk text must be non-empty")
	}
	return nil
}

// Match is a single nearest-neighbour hit from one namespace.
type Match struct {
	Chunk Chunk
	Score float64 // cosine similarity, higher is better
}

// Searcher is the query-side port onto the vector similarity index.
type Searcher interface {
	SearchChunks(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
}

// Writer is the ingestion-side port onto the vector similarity index.
type Writer interface {
	UpsertChunks(ctx context.Context, namespace string, chunks []Chunk) error
	ReplaceNamespace(ctx context.Context, namespace string, chunks []Chunk) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Lister exposes the raw corpus of a namespace, used to seed the lexical
// fallback index.
type Lister interface {
	ListChunks(ctx context.Context, namespace string) ([]Chunk, error)
}
