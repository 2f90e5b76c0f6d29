package retrieval

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many tokens a text costs in the generation
// prompt. The packing stage uses it to enforce the context budget.
type TokenCounter interface {
	Count(text string) int
}

// WhitespaceCounter approximates tokens by whitespace-separated words. It is
// the default: cheap, deterministic and close enough for budget enforcement.
type WhitespaceCounter struct{}

func (WhitespaceCounter) Count(text string) int { return len(strings.Fields(text)) }

// TiktokenCounter counts with a real BPE tokenizer for deployments that want
// budgets aligned with the generation model.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenCounter builds the counter named in configuration.
func NewTokenCounter(name string) (TokenCounter, error) {
	switch name {
	case "", "whitespace":
		return WhitespaceCounter{}, nil
	case "tiktoken":
		return NewTiktokenCounter("cl100k_base")
	default:
		return nil, fmt.Errorf("unknown token counter %q", name)
	}
}
