package provider

import (
	"errors"
	"testing"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/models"
)

func TestNewProviderRejectsMissingCredential(t *testing.T) {
	for _, key := range []string{"", "   ", "\t\n"} {
		_, err := NewProvider(config.LLMConfig{APIKey: key})
		if !errors.Is(err, models.ErrMissingAPIKey) {
			t.Fatalf("key %q: expected ErrMissingAPIKey, got %v", key, err)
		}
	}
}

func TestNewProviderAcceptsConfiguredCredential(t *testing.T) {
	p, err := NewProvider(config.LLMConfig{APIKey: "gsk_test"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p == nil {
		t.Fatalf("expected a provider")
	}
}
