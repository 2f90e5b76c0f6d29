package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/index"
)

// Store is the postgres-backed chunk index. It requires the pgvector
// extension and the schema from migrations/.
type Store struct {
	DB *sql.DB
}

// New opens a store from the configured postgres settings.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN opens a store from a raw connection string.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// UpsertChunks inserts or replaces chunks by (namespace, id).
func (s *Store) UpsertChunks(ctx context.Context, namespace string, chunks []index.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsertChunksTx(ctx, tx, namespace, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertChunksTx(ctx context.Context, tx *sql.Tx, namespace string, chunks []index.Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (id, namespace, text, embedding, metadata, updated_at)
VALUES ($1,$2,$3,$4::vector,$5,NOW())
ON CONFLICT (namespace, id) DO UPDATE SET
  text = EXCLUDED.text,
  embedding = EXCLUDED.embedding,
  metadata = EXCLUDED.metadata,
  updated_at = NOW();
`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
		vecLiteral, err := encodeVectorLiteral(c.Vector)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		metaBytes, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("chunk %s metadata: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, namespace, c.Text, vecLiteral, metaBytes); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// ReplaceNamespace atomically swaps the full content of a namespace.
func (s *Store) ReplaceNamespace(ctx context.Context, namespace string, chunks []index.Chunk) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE namespace = $1`, namespace); err != nil {
		return err
	}
	if len(chunks) > 0 {
		if err := upsertChunksTx(ctx, tx, namespace, chunks); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteNamespace removes every chunk in the namespace.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM chunks WHERE namespace = $1`, namespace)
	return err
}

// ListChunks returns all chunks of a namespace ordered by id, without
// embeddings. It feeds the lexical fallback index.
func (s *Store) ListChunks(ctx context.Context, namespace string) ([]index.Chunk, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, namespace, text, metadata
FROM chunks
WHERE namespace = $1
ORDER BY id
`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []index.Chunk
	for rows.Next() {
		var (
			c         index.Chunk
			metaBytes []byte
		)
		if err := rows.Scan(&c.ID, &c.Namespace, &c.Text, &metaBytes); err != nil {
			return nil, err
		}
		if len(metaBytes) > 0 {
			_ = json.Unmarshal(metaBytes, &c.Metadata)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SearchChunks returns the topK nearest chunks of a namespace by cosine
// similarity to the query vector.
func (s *Store) SearchChunks(ctx context.Context, namespace string, vector []float32, topK int) ([]index.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if topK <= 0 {
		topK = 10
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, namespace, text, metadata, 1 - (embedding <=> $1::vector) AS score
FROM chunks
WHERE namespace = $2
ORDER BY embedding <=> $1::vector
LIMIT $3
`, vecLiteral, namespace, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []index.Match
	for rows.Next() {
		var (
			m         index.Match
			metaBytes []byte
		)
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.Namespace, &m.Chunk.Text, &metaBytes, &m.Score); err != nil {
			return nil, err
		}
		if len(metaBytes) > 0 {
			_ = json.Unmarshal(metaBytes, &m.Chunk.Metadata)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CountChunks reports the number of chunks per namespace.
func (s *Store) CountChunks(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT namespace, COUNT(*) FROM chunks GROUP BY namespace`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var ns string
		var n int
		if err := rows.Scan(&ns, &n); err != nil {
			return nil, err
		}
		counts[ns] = n
	}
	return counts, rows.Err()
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
