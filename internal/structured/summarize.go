package structured

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campus-kb/campusqa/internal/llm"
)

// Summarizer turns SQL result rows into a natural-language answer.
type Summarizer struct {
	provider llm.Provider
	model    string
	maxRows  int
}

// NewSummarizer builds a result-to-text collaborator.
func NewSummarizer(provider llm.Provider, model string) *Summarizer {
	return &Summarizer{provider: provider, model: model, maxRows: 20}
}

const summarizePrompt = `Answer the question using only the query results below. Be concise and factual.

Question: %s

Results:
%s

Answer:`

// Summarize renders the rows and asks the model for a short answer.
func (s *Summarizer) Summarize(ctx context.Context, question string, rows []map[string]interface{}) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("no rows to summarize")
	}
	shown := rows
	if len(shown) > s.maxRows {
		shown = shown[:s.maxRows]
	}
	rendered, err := json.MarshalIndent(shown, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render rows: %w", err)
	}
	answer, err := s.provider.Generate(ctx, fmt.Sprintf(summarizePrompt, question, string(rendered)), s.model, nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return answer, nil
}
