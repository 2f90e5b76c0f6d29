package structured

import (
	"context"
	"fmt"
	"strings"

	"github.com/campus-kb/campusqa/internal/llm"
)

// InvalidQueryMarker is the sentinel a translator returns when the question
// cannot be answered with the relational schema.
const InvalidQueryMarker = "INVALID_QUERY"

// CatalogSchema describes the relational tables exposed to the translator.
const CatalogSchema = `courses(code TEXT PRIMARY KEY, title TEXT, credits INTEGER, professor TEXT, department TEXT, semester TEXT, rating REAL)`

// Translator turns a natural-language question into a SQL query, or the
// invalid marker when the schema cannot answer it.
type Translator interface {
	Translate(ctx context.Context, question, schema string) (string, error)
}

// LLMTranslator generates SQL with the configured generation model.
type LLMTranslator struct {
	provider llm.Provider
	model    string
}

// NewLLMTranslator builds a translator on top of the provider.
func NewLLMTranslator(provider llm.Provider, model string) *LLMTranslator {
	return &LLMTranslator{provider: provider, model: model}
}

const translatePrompt = `You translate questions about a university course catalog into a single SQL SELECT statement.

Schema:
%s

Rules:
- Output exactly one SELECT statement, nothing else.
- Never modify data.
- If the question cannot be answered from the schema, output exactly %s.

Question: %s
SQL:`

// Translate asks the model for a query and normalizes its output.
func (t *LLMTranslator) Translate(ctx context.Context, question, schema string) (string, error) {
	prompt := fmt.Sprintf(translatePrompt, schema, InvalidQueryMarker, question)
	raw, err := t.provider.Generate(ctx, prompt, t.model, nil)
	if err != nil {
		return "", fmt.Errorf("sql generation: %w", err)
	}
	return CleanQuery(raw), nil
}

// CleanQuery strips code fences and surrounding noise from model output.
func CleanQuery(raw string) string {
	q := strings.TrimSpace(raw)
	q = strings.TrimPrefix(q, "```sql")
	q = strings.TrimPrefix(q, "```")
	q = strings.TrimSuffix(q, "```")
	q = strings.TrimSpace(q)
	if strings.Contains(strings.ToUpper(q), InvalidQueryMarker) {
		return InvalidQueryMarker
	}
	return strings.TrimSuffix(q, ";")
}
