package llm

import (
	"context"
	"fmt"

	"github.com/campus-kb/campusqa/config"
)

// StreamChunk is one incremental piece of a streamed generation.
type StreamChunk struct {
	Text string
	Done bool
	Err  error
}

// Provider is the contract the pipeline needs from a text generation service:
// given a prompt return an answer, optionally as a token stream.
type Provider interface {
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)
	GenerateStream(ctx context.Context, prompt string, model string, options map[string]interface{}) (<-chan StreamChunk, error)
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// ModelInfo describes a configured model
type ModelInfo struct {
	Name            string
	Provider        string
	MaxTokens       int
	CostPer1KInput  float64
	CostPer1KOutput float64
}

// NewProvider creates an LLM provider based on configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}
	for _, provider := range cfg.Providers {
		switch provider.Type {
		case "openai", "compatible":
			return NewOpenAIProvider(provider), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", provider.Type)
		}
	}
	return nil, fmt.Errorf("no valid LLM providers found")
}
