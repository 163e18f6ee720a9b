package agents

import (
	"context"
	"errors"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/models"
)

// fakeLLM replays scripted responses in call order. Once the script is
// exhausted the last response repeats.
type fakeLLM struct {
	responses []string
	calls     int
	err       error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt, model string, options map[string]interface{}) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

type fakeFetcher struct {
	calls   int
	records map[string]models.FetchRecord
}

func (f *fakeFetcher) FetchEntity(ctx context.Context, name string) models.FetchRecord {
	f.calls++
	if rec, ok := f.records[name]; ok {
		return rec
	}
	return models.FetchRecord{Entity: name, News: []models.NewsArticle{}}
}

type failingRepo struct{ calls int }

func (r *failingRepo) SaveKnowledgeGraph(ctx context.Context, graph models.KnowledgeGraph) error {
	r.calls++
	return models.ErrGraphStoreUnavailable
}

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		APIKey:      "test-key",
		EntityModel: "entity-model",
		GraphModel:  "graph-model",
		JudgeModel:  "judge-model",
	}
}

func testAgentsConfig() config.AgentsConfig {
	return config.AgentsConfig{
		MaxEntitiesPerQuery: 20,
		GenericTypes:        []string{"Thing", "Unknown"},
	}
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:           true,
		Backend:           "memory",
		MaxSize:           100,
		EntityTTL:         3600,
		WebFetchTTL:       1800,
		KnowledgeGraphTTL: 3600,
	}
}
