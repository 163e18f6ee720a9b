package provider

import (
	"context"

	"github.com/aadityasp/agreegraph/config"
	groq_provider "github.com/aadityasp/agreegraph/provider/groq"
)

// Provider is the interface all LLM implementations must satisfy. The pipeline
// treats it as an opaque function: prompt in, raw text out; callers own the
// structured parsing and its failure handling.
type Provider interface {
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)
}

// NewProvider creates an LLM client from configuration. A missing credential is
// the startup-fatal configuration error: the graph and judgment stages cannot
// function without it, so the pipeline refuses to start at all.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return groq_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.MaxTokens, cfg.Timeout, cfg.MaxRetries), nil
}
